package caption

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jkang1643/Exbabel-sub010/internal/segmenter"
)

// DefaultHistoryHorizon is the number of finalized utterances remembered for
// duplicate detection when Options.HistoryHorizon is zero
const DefaultHistoryHorizon = 32

var (
	ErrMissingLang   = errors.New("caption: target language is required")
	ErrInvalidOption = errors.New("caption: invalid option")
)

// Segmenter splits running caption text into sentences and a live tail.
// *segmenter.Segmenter is the default implementation.
type Segmenter interface {
	// ProcessPartial splits a cumulative partial transcript
	ProcessPartial(text string) segmenter.PartialResult
	// ProcessFinal returns the ordered sentences of a final transcript
	ProcessFinal(text string, opts segmenter.FinalOptions) segmenter.FinalResult
	// Reset is called on utterance boundaries
	Reset()
	// SoftReset is called on language change
	SoftReset()
	// HardReset is called on engine reset
	HardReset()
	// State is for observability only
	State() segmenter.State
}

// LangSetter is implemented by segmenters whose rules depend on the language.
// SetLang is called before SoftReset when the engine language changes.
type LangSetter interface {
	SetLang(lang string)
}

// Options configures an Engine. They are copied at construction.
type Options struct {
	// Lang is the target language tag; required
	Lang string
	// SourceLang enables transcription mode when empty or equal to Lang
	SourceLang string
	// Segmenter defaults to segmenter.New(Lang)
	Segmenter Segmenter
	// Debug includes DebugCounters in every view model and logs drops
	Debug bool
	// MaxCommittedLines caps the commit log; zero means unbounded
	MaxCommittedLines int
	// HistoryHorizon bounds the utterances kept for duplicate detection;
	// zero means DefaultHistoryHorizon
	HistoryHorizon int
	// Logger defaults to the global logger
	Logger *zerolog.Logger
}

func (o Options) validate() error {
	if o.Lang == "" {
		return ErrMissingLang
	}
	if o.MaxCommittedLines < 0 {
		return fmt.Errorf("%w: MaxCommittedLines must be >= 0, got %d", ErrInvalidOption, o.MaxCommittedLines)
	}
	if o.HistoryHorizon < 0 {
		return fmt.Errorf("%w: HistoryHorizon must be >= 0, got %d", ErrInvalidOption, o.HistoryHorizon)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.HistoryHorizon == 0 {
		o.HistoryHorizon = DefaultHistoryHorizon
	}
	if o.Segmenter == nil {
		o.Segmenter = segmenter.New(o.Lang)
	}
	return o
}
