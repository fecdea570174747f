package caption

// Status is the connection status reported in the view model
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusClosed       Status = "closed"
	StatusError        Status = "error"
)

// DebugCounters are the diagnostics kept by the engine. They are only
// included in the view model when the engine was built with Debug set.
type DebugCounters struct {
	Events             int64  `json:"events"`
	Malformed          int64  `json:"malformed"`
	OffLanguage        int64  `json:"offLanguage"`
	OutOfOrder         int64  `json:"outOfOrder"`
	DuplicateFinals    int64  `json:"duplicateFinals"`
	PartialsAfterFinal int64  `json:"partialsAfterFinal"`
	Unknown            int64  `json:"unknown"`
	Corrections        int64  `json:"corrections"`
	Errors             int64  `json:"errors"`
	ListenerPanics     int64  `json:"listenerPanics"`
	LastEventType      string `json:"lastEventType"`
	LastError          string `json:"lastError,omitempty"`
}

// ViewModel is an immutable, render-ready snapshot of the captions. Every
// value handed out by the engine owns its slices; mutating it does not affect
// the engine or other snapshots.
type ViewModel struct {
	Status         Status         `json:"status"`
	Lang           string         `json:"lang"`
	SourceLang     string         `json:"sourceLang,omitempty"`
	Seq            int64          `json:"seq"`
	LiveLine       string         `json:"liveLine"`
	LiveOriginal   string         `json:"liveOriginal"`
	CommittedLines []CommitEntry  `json:"committedLines"`
	Debug          *DebugCounters `json:"debug,omitempty"`
}

// Clone returns a deep copy
func (vm ViewModel) Clone() ViewModel {
	out := vm
	out.CommittedLines = make([]CommitEntry, len(vm.CommittedLines))
	copy(out.CommittedLines, vm.CommittedLines)
	if vm.Debug != nil {
		d := *vm.Debug
		out.Debug = &d
	}
	return out
}

// sameCaptions compares everything but the debug counters, which change on
// nearly every event and never warrant a re-render on their own.
func sameCaptions(a, b ViewModel) bool {
	if a.Status != b.Status || a.Lang != b.Lang || a.SourceLang != b.SourceLang ||
		a.Seq != b.Seq || a.LiveLine != b.LiveLine || a.LiveOriginal != b.LiveOriginal ||
		len(a.CommittedLines) != len(b.CommittedLines) {
		return false
	}
	for i := range a.CommittedLines {
		if a.CommittedLines[i] != b.CommittedLines[i] {
			return false
		}
	}
	return true
}

// projector snapshots engine state and suppresses redundant emissions
type projector struct {
	last    ViewModel
	emitted bool
}

// changed records vm as the latest emission and reports whether it differs
// from the previous one.
func (p *projector) changed(vm ViewModel) bool {
	if p.emitted && sameCaptions(p.last, vm) {
		return false
	}
	p.last = vm
	p.emitted = true
	return true
}
