package caption

import "strings"

// Mode is the engine's operating mode, derived from lang and sourceLang
type Mode int

const (
	// ModeTranslation displays translated text
	ModeTranslation Mode = iota
	// ModeTranscription displays (corrected) source text
	ModeTranscription
)

// String returns the mode name
func (m Mode) String() string {
	if m == ModeTranscription {
		return "transcription"
	}
	return "translation"
}

func modeFor(lang, sourceLang string) Mode {
	if sourceLang == "" || strings.EqualFold(sourceLang, lang) {
		return ModeTranscription
	}
	return ModeTranslation
}

// selection is the text chosen for display from one translation event
type selection struct {
	display string
	source  string
	// corrected is true when the shown source text is a grammar correction
	// that differs from the raw recognition
	corrected bool
}

func (s selection) ok() bool {
	return s.display != ""
}

// selectText picks the display and source strings for ev. An empty display
// means the event contributes nothing visible.
func selectText(ev TranslationEvent, mode Mode) selection {
	original := strings.TrimSpace(ev.OriginalText)
	corrected := strings.TrimSpace(ev.CorrectedText)
	translated := strings.TrimSpace(ev.TranslatedText)

	var sel selection
	switch mode {
	case ModeTranslation:
		sel.source = original
		if corrected != "" {
			sel.source = corrected
			sel.corrected = ev.HasCorrection && corrected != original
		}
		if ev.HasTranslation && translated != "" {
			sel.display = translated
		}
	default:
		sel.display = original
		if ev.HasCorrection && corrected != "" {
			sel.display = corrected
			sel.corrected = corrected != original
		}
		sel.source = sel.display
	}
	return sel
}
