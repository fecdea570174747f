// Package segmenter splits running caption text into complete sentences and a
// residual live tail.
//
// A sentence ends at '.', '!' or '?' (or a run of them, optionally followed by
// closing quotes or brackets) that is either at the end of the text or
// immediately followed by whitespace. A '.' that closes a known abbreviation of
// the configured language ("Dr.", "Sra.", "z.B.") does not end a sentence, and
// neither does a '.' inside a number such as "3.14".
package segmenter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PartialResult is the outcome of feeding a cumulative partial transcript
type PartialResult struct {
	// LiveText is the residual tail after every complete sentence
	LiveText string
	// FlushedSentences holds sentences completed by this call only
	FlushedSentences []string
}

// FinalOptions controls how a final transcript is flushed
type FinalOptions struct {
	// IsForced marks a final produced by a speaker pause. The whole text is
	// treated as complete even without terminal punctuation.
	IsForced bool
}

// FinalResult is the ordered list of sentences contained in a final
type FinalResult struct {
	FlushedSentences []string
}

// State is a read-only view of the segmenter, for diagnostics
type State struct {
	LiveText    string `json:"liveText"`
	FlushedText string `json:"flushedText"`
}

// Segmenter is the default sentence segmenter. It is not safe for concurrent
// use; the caption engine serializes calls.
type Segmenter struct {
	lang          string
	abbreviations map[string]struct{}

	// consumed is the prefix of the current cumulative text that has already
	// been yielded as complete sentences.
	consumed string
	flushed  []string
	liveText string

	sentencesFlushed int
}

// New creates a segmenter using the abbreviation table for lang. Unknown
// languages fall back to English.
func New(lang string) *Segmenter {
	s := &Segmenter{}
	s.SetLang(lang)
	return s
}

// SetLang switches the abbreviation table and clears per-utterance state
func (s *Segmenter) SetLang(lang string) {
	s.lang = lang
	s.abbreviations = abbreviationsFor(lang)
	s.Reset()
}

// Lang returns the language the abbreviation table was chosen for
func (s *Segmenter) Lang() string {
	return s.lang
}

// ProcessPartial splits a cumulative partial transcript. Sentences already
// yielded for the same utterance are not yielded again as long as the new text
// still starts with them; if the recognizer revised earlier words the
// utterance is re-split from the start.
func (s *Segmenter) ProcessPartial(text string) PartialResult {
	text = strings.TrimSpace(text)
	if s.consumed != "" && !strings.HasPrefix(text, s.consumed) {
		s.consumed = ""
		s.flushed = nil
	}

	rest := text[len(s.consumed):]
	sentences, n := s.split(rest)
	if len(sentences) > 0 {
		s.consumed = text[:len(s.consumed)+n]
		s.flushed = append(s.flushed, sentences...)
		s.sentencesFlushed += len(sentences)
	}
	s.liveText = strings.TrimSpace(rest[n:])

	return PartialResult{
		LiveText:         s.liveText,
		FlushedSentences: sentences,
	}
}

// ProcessFinal returns every sentence in a final transcript. A final is
// authoritative, so an unterminated tail is returned as the last sentence; for
// a forced final without any terminal punctuation that yields exactly one
// sentence holding the whole text. ProcessFinal does not disturb the state
// kept for partials.
func (s *Segmenter) ProcessFinal(text string, opts FinalOptions) FinalResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return FinalResult{}
	}

	sentences, n := s.split(text)
	if tail := strings.TrimSpace(text[n:]); tail != "" {
		sentences = append(sentences, tail)
	}
	if opts.IsForced && len(sentences) == 0 {
		sentences = []string{text}
	}
	s.sentencesFlushed += len(sentences)
	return FinalResult{FlushedSentences: sentences}
}

// Reset clears per-utterance state at a segment boundary
func (s *Segmenter) Reset() {
	s.consumed = ""
	s.flushed = nil
	s.liveText = ""
}

// SoftReset is invoked on language change. It clears per-utterance state and
// keeps statistics.
func (s *Segmenter) SoftReset() {
	s.Reset()
}

// HardReset clears everything, statistics included
func (s *Segmenter) HardReset() {
	s.Reset()
	s.sentencesFlushed = 0
}

// State returns the live tail and the text flushed so far for the current
// utterance
func (s *Segmenter) State() State {
	return State{
		LiveText:    s.liveText,
		FlushedText: strings.Join(s.flushed, " "),
	}
}

// SentencesFlushed returns how many sentences have been yielded since the
// last hard reset
func (s *Segmenter) SentencesFlushed() int {
	return s.sentencesFlushed
}

// split returns the complete sentences at the start of text and the number of
// bytes they span, including the whitespace that follows the last one.
func (s *Segmenter) split(text string) ([]string, int) {
	var sentences []string
	start, consumed := 0, 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminator(r) {
			i += size
			continue
		}

		end := i + size
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if !isTerminator(next) && !isCloser(next) {
				break
			}
			end += n
		}

		if end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}

		if r == '.' && s.isAbbreviation(text[start:i+size]) {
			i = end
			continue
		}

		next := end
		for next < len(text) {
			ws, n := utf8.DecodeRuneInString(text[next:])
			if !unicode.IsSpace(ws) {
				break
			}
			next += n
		}

		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start, consumed, i = next, next, next
	}

	return sentences, consumed
}

// isAbbreviation reports whether chunk, which ends with '.', ends with a known
// abbreviation of the current language.
func (s *Segmenter) isAbbreviation(chunk string) bool {
	word := chunk
	if idx := strings.LastIndexFunc(chunk, unicode.IsSpace); idx >= 0 {
		word = chunk[idx+1:]
	}
	word = strings.TrimLeftFunc(word, func(r rune) bool {
		return isOpener(r) || isCloser(r)
	})
	if word == "" || word == "." {
		return false
	}
	_, ok := s.abbreviations[strings.ToLower(word)]
	return ok
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '»':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '“', '‘', '(', '[', '«', '¿', '¡':
		return true
	}
	return false
}
