package caption

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Wire event types
const (
	TypeTranslation   = "translation"
	TypeSessionJoined = "session_joined"
	TypeSessionReady  = "session_ready"
	TypeSessionEnded  = "session_ended"
	TypeSessionStats  = "session_stats"
	TypeError         = "error"

	ttsPrefix = "tts/"
)

// UpdateType marks a late update to an already finalized utterance
type UpdateType string

const (
	UpdateNone        UpdateType = ""
	UpdateGrammar     UpdateType = "grammar"
	UpdateTranslation UpdateType = "translation"
)

var (
	// ErrMalformedEvent is returned when a frame is not a JSON object or a
	// translation event lacks a required field
	ErrMalformedEvent = errors.New("malformed event")
)

// Event is one inbound wire event. The concrete types are TranslationEvent,
// LifecycleEvent, TTSEvent, ErrorEvent and UnknownEvent.
type Event interface {
	// Type returns the wire "type" field
	Type() string
	isEvent()
}

// TranslationEvent carries caption text for one utterance
type TranslationEvent struct {
	SeqID          int64      `json:"seqId"`
	SourceSeqID    int64      `json:"sourceSeqId"`
	IsPartial      bool       `json:"isPartial"`
	OriginalText   string     `json:"originalText"`
	CorrectedText  string     `json:"correctedText,omitempty"`
	TranslatedText string     `json:"translatedText,omitempty"`
	SourceLang     string     `json:"sourceLang"`
	TargetLang     string     `json:"targetLang"`
	HasTranslation bool       `json:"hasTranslation,omitempty"`
	HasCorrection  bool       `json:"hasCorrection,omitempty"`
	ForceFinal     bool       `json:"forceFinal,omitempty"`
	UpdateType     UpdateType `json:"updateType,omitempty"`
	Timestamp      int64      `json:"timestamp,omitempty"`
}

// LifecycleEvent is one of the session_* status events
type LifecycleEvent struct {
	Kind string
	Raw  json.RawMessage
}

// TTSEvent is any tts/* event; it is forwarded to tts listeners untouched
type TTSEvent struct {
	Kind string
	Raw  json.RawMessage
}

// ErrorEvent is a server-reported error
type ErrorEvent struct {
	Code    string
	Message string
	Raw     json.RawMessage
}

// UnknownEvent is anything else, including frames without a string type
type UnknownEvent struct {
	Kind string
	Raw  json.RawMessage
}

func (TranslationEvent) Type() string { return TypeTranslation }
func (e LifecycleEvent) Type() string { return e.Kind }
func (e TTSEvent) Type() string       { return e.Kind }
func (ErrorEvent) Type() string       { return TypeError }
func (e UnknownEvent) Type() string   { return e.Kind }

func (TranslationEvent) isEvent() {}
func (LifecycleEvent) isEvent()   {}
func (TTSEvent) isEvent()         {}
func (ErrorEvent) isEvent()       {}
func (UnknownEvent) isEvent()     {}

// validate checks the fields the typed API cannot enforce on its own
func (e TranslationEvent) validate() error {
	if e.SeqID < 0 {
		return fmt.Errorf("%w: negative seqId %d", ErrMalformedEvent, e.SeqID)
	}
	if strings.TrimSpace(e.TargetLang) == "" {
		return fmt.Errorf("%w: missing targetLang", ErrMalformedEvent)
	}
	return nil
}

// wireTranslation mirrors TranslationEvent with pointers so that absent
// required fields can be told apart from zero values.
type wireTranslation struct {
	SeqID          *json.Number `json:"seqId"`
	SourceSeqID    *json.Number `json:"sourceSeqId"`
	IsPartial      *bool        `json:"isPartial"`
	OriginalText   string       `json:"originalText"`
	CorrectedText  string       `json:"correctedText"`
	TranslatedText string       `json:"translatedText"`
	SourceLang     string       `json:"sourceLang"`
	TargetLang     *string      `json:"targetLang"`
	HasTranslation bool         `json:"hasTranslation"`
	HasCorrection  bool         `json:"hasCorrection"`
	ForceFinal     bool         `json:"forceFinal"`
	UpdateType     string       `json:"updateType"`
	Timestamp      *json.Number `json:"timestamp"`
}

// ParseEvent decodes one wire frame. Frames that are not JSON objects and
// translation events missing seqId, isPartial or targetLang yield an error
// wrapping ErrMalformedEvent. A frame without a string "type" decodes to an
// UnknownEvent.
func ParseEvent(data []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	// Events keep the frame; callers may reuse their buffer.
	raw := cloneRaw(data)

	var kind string
	if rawType, ok := fields["type"]; !ok || json.Unmarshal(rawType, &kind) != nil {
		return UnknownEvent{Raw: raw}, nil
	}

	switch {
	case kind == TypeTranslation:
		return decodeTranslation(data)
	case kind == TypeSessionJoined, kind == TypeSessionReady,
		kind == TypeSessionEnded, kind == TypeSessionStats:
		return LifecycleEvent{Kind: kind, Raw: raw}, nil
	case kind == TypeError:
		return decodeError(raw), nil
	case strings.HasPrefix(kind, ttsPrefix):
		return TTSEvent{Kind: kind, Raw: raw}, nil
	default:
		return UnknownEvent{Kind: kind, Raw: raw}, nil
	}
}

func decodeTranslation(data []byte) (Event, error) {
	var w wireTranslation
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: translation: %v", ErrMalformedEvent, err)
	}
	if w.SeqID == nil {
		return nil, fmt.Errorf("%w: translation: missing seqId", ErrMalformedEvent)
	}
	seqID, err := w.SeqID.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: translation: seqId %q is not an integer", ErrMalformedEvent, w.SeqID.String())
	}
	if w.IsPartial == nil {
		return nil, fmt.Errorf("%w: translation: missing isPartial", ErrMalformedEvent)
	}
	if w.TargetLang == nil {
		return nil, fmt.Errorf("%w: translation: missing targetLang", ErrMalformedEvent)
	}

	// Servers that do not group utterances send one final per seqId.
	sourceSeqID := seqID
	if w.SourceSeqID != nil {
		if sourceSeqID, err = w.SourceSeqID.Int64(); err != nil {
			return nil, fmt.Errorf("%w: translation: sourceSeqId %q is not an integer", ErrMalformedEvent, w.SourceSeqID.String())
		}
	}

	var ts int64
	if w.Timestamp != nil {
		if v, err := w.Timestamp.Int64(); err == nil {
			ts = v
		} else if f, err := w.Timestamp.Float64(); err == nil {
			ts = int64(f)
		}
	}

	ev := TranslationEvent{
		SeqID:          seqID,
		SourceSeqID:    sourceSeqID,
		IsPartial:      *w.IsPartial,
		OriginalText:   w.OriginalText,
		CorrectedText:  w.CorrectedText,
		TranslatedText: w.TranslatedText,
		SourceLang:     w.SourceLang,
		TargetLang:     *w.TargetLang,
		HasTranslation: w.HasTranslation,
		HasCorrection:  w.HasCorrection,
		ForceFinal:     w.ForceFinal,
		UpdateType:     UpdateType(w.UpdateType),
		Timestamp:      ts,
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeError(data []byte) ErrorEvent {
	var w struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	_ = json.Unmarshal(data, &w)

	ev := ErrorEvent{Message: w.Message, Raw: json.RawMessage(data)}
	if ev.Message == "" {
		ev.Message = w.Error
	}
	if len(w.Code) > 0 {
		var code string
		if json.Unmarshal(w.Code, &code) != nil {
			code = string(w.Code)
		}
		ev.Code = code
	}
	return ev
}

// cloneRaw copies a frame so no two holders share its bytes
func cloneRaw(data []byte) json.RawMessage {
	if data == nil {
		return nil
	}
	return json.RawMessage(append([]byte(nil), data...))
}
