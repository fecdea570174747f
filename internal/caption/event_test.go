package caption

import (
	"errors"
	"testing"
)

func TestParseEvent_Translation(t *testing.T) {
	frame := `{"type":"translation","seqId":12,"sourceSeqId":9,"isPartial":false,"originalText":"We gonna go.","correctedText":"We are going to go.","translatedText":"Vamos a ir.","sourceLang":"en","targetLang":"es","hasTranslation":true,"hasCorrection":true,"forceFinal":true,"updateType":"grammar","timestamp":1712345678901}`

	ev, err := ParseEvent([]byte(frame))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	tr, ok := ev.(TranslationEvent)
	if !ok {
		t.Fatalf("Expected TranslationEvent, got %T", ev)
	}

	expected := TranslationEvent{
		SeqID:          12,
		SourceSeqID:    9,
		IsPartial:      false,
		OriginalText:   "We gonna go.",
		CorrectedText:  "We are going to go.",
		TranslatedText: "Vamos a ir.",
		SourceLang:     "en",
		TargetLang:     "es",
		HasTranslation: true,
		HasCorrection:  true,
		ForceFinal:     true,
		UpdateType:     UpdateGrammar,
		Timestamp:      1712345678901,
	}
	if tr != expected {
		t.Errorf("Expected %+v, got %+v", expected, tr)
	}
}

func TestParseEvent_SourceSeqIDDefaultsToSeqID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"translation","seqId":4,"isPartial":true,"targetLang":"es"}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if src := ev.(TranslationEvent).SourceSeqID; src != 4 {
		t.Errorf("Expected sourceSeqId 4, got %d", src)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `hello`},
		{"array", `[1,2]`},
		{"string", `"translation"`},
		{"missing seqId", `{"type":"translation","isPartial":true,"targetLang":"es"}`},
		{"fractional seqId", `{"type":"translation","seqId":1.5,"isPartial":true,"targetLang":"es"}`},
		{"boolean seqId", `{"type":"translation","seqId":true,"isPartial":true,"targetLang":"es"}`},
		{"negative seqId", `{"type":"translation","seqId":-2,"isPartial":true,"targetLang":"es"}`},
		{"missing isPartial", `{"type":"translation","seqId":1,"targetLang":"es"}`},
		{"string isPartial", `{"type":"translation","seqId":1,"isPartial":"yes","targetLang":"es"}`},
		{"missing targetLang", `{"type":"translation","seqId":1,"isPartial":true}`},
		{"empty targetLang", `{"type":"translation","seqId":1,"isPartial":true,"targetLang":" "}`},
		{"bad sourceSeqId", `{"type":"translation","seqId":1,"sourceSeqId":"x","isPartial":true,"targetLang":"es"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("Expected ErrMalformedEvent, got %v (event %+v)", err, ev)
			}
		})
	}
}

func TestParseEvent_OtherTypes(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		expected string
	}{
		{"session joined", `{"type":"session_joined","sessionId":"abc"}`, "LifecycleEvent"},
		{"session ready", `{"type":"session_ready"}`, "LifecycleEvent"},
		{"session ended", `{"type":"session_ended"}`, "LifecycleEvent"},
		{"session stats", `{"type":"session_stats","listeners":4}`, "LifecycleEvent"},
		{"tts audio", `{"type":"tts/audio","chunk":"AAAA"}`, "TTSEvent"},
		{"error", `{"type":"error","message":"bad"}`, "ErrorEvent"},
		{"unknown", `{"type":"pong"}`, "UnknownEvent"},
		{"missing type", `{"seqId":1}`, "UnknownEvent"},
		{"numeric type", `{"type":7}`, "UnknownEvent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			var got string
			switch ev.(type) {
			case LifecycleEvent:
				got = "LifecycleEvent"
			case TTSEvent:
				got = "TTSEvent"
			case ErrorEvent:
				got = "ErrorEvent"
			case UnknownEvent:
				got = "UnknownEvent"
			default:
				got = "other"
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParseEvent_KeepsRawFrame(t *testing.T) {
	frame := []byte(`{"type":"tts/audio","chunk":"AAAA"}`)
	ev, err := ParseEvent(frame)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Reusing the caller's buffer must not change the event
	copy(frame, []byte(`XXXXXXXX`))
	if raw := string(ev.(TTSEvent).Raw); raw != `{"type":"tts/audio","chunk":"AAAA"}` {
		t.Errorf("Expected raw frame to be copied, got %s", raw)
	}
}

func TestParseEvent_Error(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		code    string
		message string
	}{
		{"message", `{"type":"error","code":"quota","message":"quota exceeded"}`, "quota", "quota exceeded"},
		{"error field", `{"type":"error","error":"session not found"}`, "", "session not found"},
		{"numeric code", `{"type":"error","code":429,"message":"slow down"}`, "429", "slow down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			e := ev.(ErrorEvent)
			if e.Code != tt.code || e.Message != tt.message {
				t.Errorf("Expected code '%s' and message '%s', got '%s' and '%s'", tt.code, tt.message, e.Code, e.Message)
			}
		})
	}
}
