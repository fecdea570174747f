package caption

import (
	"reflect"
	"testing"
)

func entryTexts(entries []CommitEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func TestCommitLog_AppendInsertsBySeqID(t *testing.T) {
	l := newCommitLog(0)
	l.append([]string{"B."}, "b", 5, 5, false)
	l.append([]string{"D."}, "d", 9, 9, false)
	l.append([]string{"A1.", "A2."}, "a", 2, 2, false)
	l.append([]string{"C."}, "c", 5, 6, false)

	expected := []string{"A1.", "A2.", "B.", "C.", "D."}
	if got := entryTexts(l.snapshot()); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestCommitLog_AppendDedupesSentences(t *testing.T) {
	l := newCommitLog(0)
	added, trimmed := l.append([]string{"Sí.", "sí", " ", "No."}, "", 1, 1, false)

	if added != 2 || trimmed != 0 {
		t.Errorf("Expected 2 added and 0 trimmed, got %d and %d", added, trimmed)
	}
	if got := entryTexts(l.snapshot()); !reflect.DeepEqual(got, []string{"Sí.", "No."}) {
		t.Errorf("Expected [Sí. No.], got %v", got)
	}
}

func TestCommitLog_Cap(t *testing.T) {
	l := newCommitLog(3)
	l.append([]string{"One."}, "", 1, 1, false)
	l.append([]string{"Two."}, "", 2, 2, false)
	_, trimmed := l.append([]string{"Three.", "Four."}, "", 3, 3, false)

	if trimmed != 1 {
		t.Errorf("Expected 1 trimmed line, got %d", trimmed)
	}
	if got := entryTexts(l.snapshot()); !reflect.DeepEqual(got, []string{"Two.", "Three.", "Four."}) {
		t.Errorf("Expected head to be trimmed, got %v", got)
	}
	if l.size() != 3 {
		t.Errorf("Expected size 3, got %d", l.size())
	}
}

func TestCommitLog_Correct(t *testing.T) {
	l := newCommitLog(0)
	l.append([]string{"One."}, "one", 1, 1, false)
	l.append([]string{"Two a.", "Two b."}, "two", 2, 2, false)
	l.append([]string{"Three."}, "three", 3, 3, false)

	if !l.correct([]string{"Two."}, "two fixed", 2) {
		t.Fatal("Expected correction to apply")
	}

	entries := l.snapshot()
	if got := entryTexts(entries); !reflect.DeepEqual(got, []string{"One.", "Two.", "Three."}) {
		t.Fatalf("Expected in-place replacement, got %v", got)
	}
	fixed := entries[1]
	if fixed.SeqID != 2 || fixed.OriginalText != "two fixed" || !fixed.CorrectionApplied {
		t.Errorf("Unexpected corrected entry %+v", fixed)
	}

	if l.correct([]string{"Nope."}, "", 42) {
		t.Error("Expected correction of an unknown utterance to fail")
	}
}

func TestCommitLog_CorrectOriginal(t *testing.T) {
	l := newCommitLog(0)
	l.append([]string{"Uno.", "Dos."}, "One. Two.", 1, 1, false)

	if !l.correctOriginal("One, two.", 1) {
		t.Fatal("Expected correction to apply")
	}
	for _, e := range l.snapshot() {
		if e.OriginalText != "One, two." || !e.CorrectionApplied {
			t.Errorf("Unexpected entry %+v", e)
		}
	}
	if l.correctOriginal("x", 2) {
		t.Error("Expected unknown utterance to report false")
	}
}

func TestCommitLog_SnapshotIsCopy(t *testing.T) {
	l := newCommitLog(0)
	l.append([]string{"One."}, "", 1, 1, false)

	snap := l.snapshot()
	snap[0].Text = "changed"
	if l.snapshot()[0].Text != "One." {
		t.Error("Expected snapshot to be independent of the log")
	}
}
