package caption

import "fmt"

// segmentState is the lifecycle of one spoken utterance
type segmentState int

const (
	stateNone segmentState = iota
	stateOpen
	stateFinalized
)

// String returns the string representation of the state
func (s segmentState) String() string {
	switch s {
	case stateNone:
		return "NONE"
	case stateOpen:
		return "OPEN"
	case stateFinalized:
		return "FINALIZED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// segment tracks one sourceSeqId from its first partial to its committed
// final.
//
//	NONE ──partial──→ OPEN ──partial──→ OPEN
//	  │                 │
//	  └──final──→ FINALIZED ←──final──┘
//	                 │
//	                 └──correction final──→ FINALIZED
type segment struct {
	sourceSeqID int64
	created     uint64

	sawPartial          bool
	highestPartialSeqID int64
	finalSeqID          int64
	finalized           bool
	forced              bool

	lastOriginal   string
	lastCorrected  string
	lastTranslated string
	sawCorrection  bool

	// committed is false for a finalized utterance that had nothing to show
	committed           bool
	committedNormalized string
	committedSource     string
}

func (s *segment) state() segmentState {
	switch {
	case s == nil:
		return stateNone
	case s.finalized:
		return stateFinalized
	default:
		return stateOpen
	}
}

// observe records the latest text fields of an admitted event
func (s *segment) observe(ev TranslationEvent) {
	if ev.OriginalText != "" {
		s.lastOriginal = ev.OriginalText
	}
	if ev.CorrectedText != "" {
		s.lastCorrected = ev.CorrectedText
	}
	if ev.TranslatedText != "" {
		s.lastTranslated = ev.TranslatedText
	}
	if ev.HasCorrection {
		s.sawCorrection = true
	}
	if ev.IsPartial {
		s.sawPartial = true
		s.highestPartialSeqID = ev.SeqID
	}
}

// tracker owns the segments of one engine, bounded by the history horizon
type tracker struct {
	horizon  int
	segments map[int64]*segment
	// finalized lists finalized ids in the order they were finalized
	finalized []int64
	open      int
	nextID    uint64

	// gone remembers evicted ids, oldest first, up to evictedMemory of them
	gone     map[int64]struct{}
	goneRing []int64
}

// evictedMemory is how many horizons of evicted ids stay remembered
const evictedMemory = 8

func newTracker(horizon int) *tracker {
	return &tracker{
		horizon:  horizon,
		segments: make(map[int64]*segment),
		gone:     make(map[int64]struct{}),
	}
}

func (t *tracker) get(sourceSeqID int64) *segment {
	return t.segments[sourceSeqID]
}

// evicted reports whether an untracked id belongs to a finalized utterance
// that was evicted. Ids never seen are not evicted, however small.
func (t *tracker) evicted(sourceSeqID int64) bool {
	if _, ok := t.segments[sourceSeqID]; ok {
		return false
	}
	_, ok := t.gone[sourceSeqID]
	return ok
}

func (t *tracker) remember(id int64) {
	t.gone[id] = struct{}{}
	t.goneRing = append(t.goneRing, id)
	if len(t.goneRing) > t.horizon*evictedMemory {
		delete(t.gone, t.goneRing[0])
		t.goneRing = t.goneRing[1:]
	}
}

// openSegment creates a segment in OPEN state. When more than horizon utterances are
// open at once, the oldest open one is forgotten; its final, if it ever
// arrives, is handled as a first final.
func (t *tracker) openSegment(sourceSeqID int64) *segment {
	t.nextID++
	seg := &segment{sourceSeqID: sourceSeqID, created: t.nextID}
	t.segments[sourceSeqID] = seg
	t.open++

	if t.open > t.horizon {
		var oldest *segment
		for _, s := range t.segments {
			if s.finalized {
				continue
			}
			if oldest == nil || s.created < oldest.created {
				oldest = s
			}
		}
		if oldest != nil && oldest != seg {
			delete(t.segments, oldest.sourceSeqID)
			t.open--
		}
	}
	return seg
}

// finalize moves seg to FINALIZED and evicts finalized segments beyond the
// horizon. Forced finals are evicted first, then the oldest finalized.
func (t *tracker) finalize(seg *segment, seqID int64, forced bool) {
	if seg.finalized {
		return
	}
	seg.finalized = true
	seg.finalSeqID = seqID
	seg.forced = forced
	t.open--
	t.finalized = append(t.finalized, seg.sourceSeqID)

	for len(t.finalized) > t.horizon {
		idx := 0
		for i, id := range t.finalized[:len(t.finalized)-1] {
			if s := t.segments[id]; s != nil && s.forced {
				idx = i
				break
			}
		}
		id := t.finalized[idx]
		t.finalized = append(t.finalized[:idx], t.finalized[idx+1:]...)
		delete(t.segments, id)
		t.remember(id)
	}
}

func (t *tracker) size() int {
	return len(t.segments)
}
