package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/jkang1643/Exbabel-sub010/internal/caption"
)

type lineKey struct {
	sourceSeqID int64
	text        string
}

// renderer prints committed lines to out as they first appear. A corrected
// line is printed again with a marker.
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[lineKey]struct{}
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, printed: make(map[lineKey]struct{})}
}

// render is registered as a state listener
func (r *renderer) render(vm caption.ViewModel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only lines still in the log are remembered, so trimmed and replaced
	// lines are forgotten.
	current := make(map[lineKey]struct{}, len(vm.CommittedLines))
	for _, line := range vm.CommittedLines {
		key := lineKey{sourceSeqID: line.SourceSeqID, text: line.Text}
		current[key] = struct{}{}
		if _, ok := r.printed[key]; ok {
			continue
		}

		marker := " "
		if line.CorrectionApplied {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s[%d] %s\n", marker, line.SeqID, line.Text)
	}
	r.printed = current
}
