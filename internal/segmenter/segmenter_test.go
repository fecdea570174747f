package segmenter

import (
	"reflect"
	"testing"
)

func TestProcessPartial_NoBoundary(t *testing.T) {
	s := New("en")

	res := s.ProcessPartial("Hello everyone")
	if res.LiveText != "Hello everyone" {
		t.Errorf("Expected live text 'Hello everyone', got '%s'", res.LiveText)
	}
	if len(res.FlushedSentences) != 0 {
		t.Errorf("Expected no flushed sentences, got %v", res.FlushedSentences)
	}
}

func TestProcessPartial_FlushesOnce(t *testing.T) {
	s := New("en")

	res := s.ProcessPartial("Hello everyone. Welcome")
	if !reflect.DeepEqual(res.FlushedSentences, []string{"Hello everyone."}) {
		t.Errorf("Expected one flushed sentence, got %v", res.FlushedSentences)
	}
	if res.LiveText != "Welcome" {
		t.Errorf("Expected live text 'Welcome', got '%s'", res.LiveText)
	}

	res = s.ProcessPartial("Hello everyone. Welcome to the show")
	if len(res.FlushedSentences) != 0 {
		t.Errorf("Expected sentence not to be flushed twice, got %v", res.FlushedSentences)
	}
	if res.LiveText != "Welcome to the show" {
		t.Errorf("Expected live text 'Welcome to the show', got '%s'", res.LiveText)
	}

	state := s.State()
	if state.FlushedText != "Hello everyone." {
		t.Errorf("Expected flushed text 'Hello everyone.', got '%s'", state.FlushedText)
	}
}

func TestProcessPartial_RevisedPrefix(t *testing.T) {
	s := New("en")
	s.ProcessPartial("Hello every one. Wel")

	res := s.ProcessPartial("Hello everyone. Welcome")
	if !reflect.DeepEqual(res.FlushedSentences, []string{"Hello everyone."}) {
		t.Errorf("Expected re-split after revision, got %v", res.FlushedSentences)
	}
	if res.LiveText != "Welcome" {
		t.Errorf("Expected live text 'Welcome', got '%s'", res.LiveText)
	}
}

func TestProcessPartial_TerminalAtEnd(t *testing.T) {
	s := New("es")

	res := s.ProcessPartial("Hola a todos.")
	if res.LiveText != "" {
		t.Errorf("Expected empty live text, got '%s'", res.LiveText)
	}
	if !reflect.DeepEqual(res.FlushedSentences, []string{"Hola a todos."}) {
		t.Errorf("Expected one flushed sentence, got %v", res.FlushedSentences)
	}
}

func TestSplit_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		lang     string
		text     string
		expected []string
	}{
		{"plain", "en", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"decimal", "en", "Pi is 3.14 roughly. Yes.", []string{"Pi is 3.14 roughly.", "Yes."}},
		{"english abbreviation", "en", "Dr. Smith is here. Hi.", []string{"Dr. Smith is here.", "Hi."}},
		{"dotted abbreviation", "en", "Bring fruit, e.g. apples. Thanks.", []string{"Bring fruit, e.g. apples.", "Thanks."}},
		{"spanish abbreviation", "es-MX", "La Sra. García llegó. Bien.", []string{"La Sra. García llegó.", "Bien."}},
		{"german abbreviation", "de", "Obst, z.B. Äpfel. Danke.", []string{"Obst, z.B. Äpfel.", "Danke."}},
		{"closing quote", "en", `He said "stop." Then left.`, []string{`He said "stop."`, "Then left."}},
		{"ellipsis run", "en", "Well... maybe. Ok.", []string{"Well...", "maybe.", "Ok."}},
		{"interrobang", "en", "Really?! Yes.", []string{"Really?!", "Yes."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.lang)
			res := s.ProcessFinal(tt.text, FinalOptions{})
			if !reflect.DeepEqual(res.FlushedSentences, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, res.FlushedSentences)
			}
		})
	}
}

func TestProcessFinal_ForcedWithoutPunctuation(t *testing.T) {
	s := New("en")

	res := s.ProcessFinal("  Welcome to the conference  ", FinalOptions{IsForced: true})
	if !reflect.DeepEqual(res.FlushedSentences, []string{"Welcome to the conference"}) {
		t.Errorf("Expected whole text as one sentence, got %v", res.FlushedSentences)
	}
}

func TestProcessFinal_UnterminatedTail(t *testing.T) {
	s := New("en")

	res := s.ProcessFinal("First one. and then", FinalOptions{})
	if !reflect.DeepEqual(res.FlushedSentences, []string{"First one.", "and then"}) {
		t.Errorf("Expected tail kept as last sentence, got %v", res.FlushedSentences)
	}
}

func TestProcessFinal_Empty(t *testing.T) {
	s := New("en")

	res := s.ProcessFinal("   ", FinalOptions{IsForced: true})
	if len(res.FlushedSentences) != 0 {
		t.Errorf("Expected no sentences for blank text, got %v", res.FlushedSentences)
	}
}

func TestProcessFinal_KeepsPartialState(t *testing.T) {
	s := New("en")
	s.ProcessPartial("Open one. still going")
	s.ProcessFinal("Other utterance.", FinalOptions{})

	state := s.State()
	if state.LiveText != "still going" {
		t.Errorf("Expected partial state untouched, got '%s'", state.LiveText)
	}
}

func TestResets(t *testing.T) {
	s := New("en")
	s.ProcessPartial("One. Two")

	s.Reset()
	if state := s.State(); state.LiveText != "" || state.FlushedText != "" {
		t.Errorf("Expected empty state after Reset, got %+v", state)
	}
	if s.SentencesFlushed() != 1 {
		t.Errorf("Expected Reset to keep statistics, got %d", s.SentencesFlushed())
	}

	s.ProcessPartial("Three. Four")
	s.HardReset()
	if s.SentencesFlushed() != 0 {
		t.Errorf("Expected HardReset to clear statistics, got %d", s.SentencesFlushed())
	}
}

func TestSetLang_FallsBackToEnglish(t *testing.T) {
	s := New("xx")
	res := s.ProcessFinal("Mr. Brown left. Bye.", FinalOptions{})
	if len(res.FlushedSentences) != 2 {
		t.Errorf("Expected English fallback table, got %v", res.FlushedSentences)
	}

	s.SetLang("fr")
	if s.Lang() != "fr" {
		t.Errorf("Expected lang 'fr', got '%s'", s.Lang())
	}
	res = s.ProcessFinal("M. Dupont arrive. Salut.", FinalOptions{})
	if !reflect.DeepEqual(res.FlushedSentences, []string{"M. Dupont arrive.", "Salut."}) {
		t.Errorf("Expected French abbreviation kept, got %v", res.FlushedSentences)
	}
}
