package caption

// verdict is the sequence gate's decision for one translation event
type verdict int

const (
	admit verdict = iota
	// admitCorrection is a final for an already finalized utterance whose
	// normalized text differs from the one on record.
	admitCorrection
	dropOutOfOrder
	dropLatePartial
	dropDuplicateFinal
)

// String returns the drop reason label used in counters and metrics
func (v verdict) String() string {
	switch v {
	case admit:
		return "admit"
	case admitCorrection:
		return "correction"
	case dropOutOfOrder:
		return "out_of_order"
	case dropLatePartial:
		return "partial_after_final"
	case dropDuplicateFinal:
		return "duplicate_final"
	default:
		return "unknown"
	}
}

func (v verdict) admitted() bool {
	return v == admit || v == admitCorrection
}

// gatePartial applies transport monotonicity within one utterance. seg is nil
// when the utterance is not tracked; evicted reports whether its id is at or
// below the eviction floor.
func gatePartial(seg *segment, seqID int64, evicted bool) verdict {
	switch {
	case seg == nil && evicted:
		return dropLatePartial
	case seg == nil:
		return admit
	case seg.sawPartial && seqID <= seg.highestPartialSeqID:
		// Stale seqIds count as out of order even after the final.
		return dropOutOfOrder
	case seg.finalized:
		return dropLatePartial
	default:
		return admit
	}
}

// gateFinal admits finals regardless of seqId. Once an utterance is finalized
// only a final with different normalized text gets through, as a correction.
func gateFinal(seg *segment, normalized string, evicted bool) verdict {
	switch {
	case seg == nil && evicted:
		return dropDuplicateFinal
	case seg == nil || !seg.finalized:
		return admit
	case normalized == "" || normalized == seg.committedNormalized:
		return dropDuplicateFinal
	default:
		return admitCorrection
	}
}
