package caption

import "sort"

// CommitEntry is one committed caption line
type CommitEntry struct {
	Text              string `json:"text"`
	OriginalText      string `json:"originalText"`
	SeqID             int64  `json:"seqId"`
	SourceSeqID       int64  `json:"sourceSeqId"`
	CorrectionApplied bool   `json:"correctionApplied"`
}

// commitLog is the ordered list of committed lines. Entries are kept sorted by
// SeqID; a final that arrives after a newer one is inserted at its place
// rather than at the tail.
type commitLog struct {
	entries []CommitEntry
	max     int
}

func newCommitLog(maxLines int) *commitLog {
	return &commitLog{max: maxLines}
}

// append adds one entry per sentence, all sharing seqID and sourceSeqID.
// Sentences that normalize to the same text are only kept once. It returns
// the number of lines added and the number trimmed from the head.
func (l *commitLog) append(sentences []string, original string, seqID, sourceSeqID int64, corrected bool) (added, trimmed int) {
	lines := buildLines(sentences, original, seqID, sourceSeqID, corrected)
	if len(lines) == 0 {
		return 0, 0
	}

	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].SeqID > seqID
	})
	if idx == len(l.entries) {
		l.entries = append(l.entries, lines...)
	} else {
		next := make([]CommitEntry, 0, len(l.entries)+len(lines))
		next = append(next, l.entries[:idx]...)
		next = append(next, lines...)
		next = append(next, l.entries[idx:]...)
		l.entries = next
	}

	return len(lines), l.enforceCap()
}

// correct rewrites the lines of sourceSeqID in place, keeping their position
// and seqId. It reports false when no line of that utterance is present.
func (l *commitLog) correct(sentences []string, original string, sourceSeqID int64) bool {
	first := -1
	for i, e := range l.entries {
		if e.SourceSeqID == sourceSeqID {
			first = i
			break
		}
	}
	if first < 0 {
		return false
	}

	seqID := l.entries[first].SeqID
	lines := buildLines(sentences, original, seqID, sourceSeqID, true)

	next := make([]CommitEntry, 0, len(l.entries)+len(lines))
	next = append(next, l.entries[:first]...)
	next = append(next, lines...)
	for _, e := range l.entries[first:] {
		if e.SourceSeqID != sourceSeqID {
			next = append(next, e)
		}
	}
	l.entries = next
	l.enforceCap()
	return true
}

// correctOriginal replaces the source text of the lines of sourceSeqID
func (l *commitLog) correctOriginal(original string, sourceSeqID int64) bool {
	found := false
	for i := range l.entries {
		if l.entries[i].SourceSeqID == sourceSeqID {
			l.entries[i].OriginalText = original
			l.entries[i].CorrectionApplied = true
			found = true
		}
	}
	return found
}

func (l *commitLog) enforceCap() int {
	if l.max <= 0 || len(l.entries) <= l.max {
		return 0
	}
	trimmed := len(l.entries) - l.max
	l.entries = append([]CommitEntry(nil), l.entries[trimmed:]...)
	return trimmed
}

func (l *commitLog) snapshot() []CommitEntry {
	out := make([]CommitEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *commitLog) size() int {
	return len(l.entries)
}

func buildLines(sentences []string, original string, seqID, sourceSeqID int64, corrected bool) []CommitEntry {
	lines := make([]CommitEntry, 0, len(sentences))
	seen := make(map[string]struct{}, len(sentences))
	for _, s := range sentences {
		key := Normalize(s)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		lines = append(lines, CommitEntry{
			Text:              s,
			OriginalText:      original,
			SeqID:             seqID,
			SourceSeqID:       sourceSeqID,
			CorrectionApplied: corrected,
		})
	}
	return lines
}
