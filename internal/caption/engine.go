// Package caption turns an ordered stream of translation events into a
// render-ready view model of live captions for one target language: a live
// line for the utterance being spoken and an ordered list of committed lines.
//
// Events go through intake (shape and language checks), a sequence gate
// (stale partials, duplicate finals), a per-utterance tracker, text selection
// and sentence segmentation before landing in the commit log. Every change is
// published as an immutable ViewModel to state listeners. Replaying the same
// events in the same order always yields the same view models.
package caption

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jkang1643/Exbabel-sub010/internal/observability"
	"github.com/jkang1643/Exbabel-sub010/internal/segmenter"
)

// liveLine is the in-progress caption and the utterance that owns it
type liveLine struct {
	active      bool
	sourceSeqID int64
	text        string
	original    string
}

// Engine is the caption state machine. All methods are safe for concurrent
// use. State changes are applied one at a time in submission order; a call
// made from inside a listener, or while another goroutine is applying an
// update, is queued and applied right after the current one.
type Engine struct {
	opts      Options
	segmenter Segmenter
	listeners listenerSet

	queueMu  sync.Mutex
	queue    []func() []notice
	draining bool

	mu        sync.Mutex
	base      zerolog.Logger
	logger    zerolog.Logger
	lang      string
	mode      Mode
	status    Status
	seq       int64
	tracker   *tracker
	log       *commitLog
	live      liveLine
	counters  DebugCounters
	projector projector
}

// New validates opts and builds an engine in the disconnected state
func New(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	base := observability.GetLogger()
	if opts.Logger != nil {
		base = *opts.Logger
	}

	e := &Engine{
		opts:      opts,
		base:      base,
		segmenter: opts.Segmenter,
		lang:      opts.Lang,
		mode:      modeFor(opts.Lang, opts.SourceLang),
		status:    StatusDisconnected,
		tracker:   newTracker(opts.HistoryHorizon),
		log:       newCommitLog(opts.MaxCommittedLines),
	}
	e.logger = e.newLogger()
	e.segmenter.HardReset()
	e.projector.changed(e.viewModel())

	e.logger.Debug().
		Str("mode", e.mode.String()).
		Int("history_horizon", opts.HistoryHorizon).
		Int("max_committed_lines", opts.MaxCommittedLines).
		Msg("Caption engine created")
	return e, nil
}

func (e *Engine) newLogger() zerolog.Logger {
	return e.base.With().
		Str("component", "caption").
		Str("lang", e.lang).
		Logger()
}

// Ingest feeds one event. It never fails; defects are counted and reported
// to warn listeners.
func (e *Engine) Ingest(ev Event) {
	e.submit(func() []notice {
		return e.apply(ev)
	})
}

// IngestJSON decodes one wire frame and ingests it. A frame that cannot be
// decoded is counted as malformed and its error returned so that a transport
// can account for it; nothing else happens.
func (e *Engine) IngestJSON(frame []byte) error {
	ev, err := ParseEvent(frame)
	if err != nil {
		e.submit(func() []notice {
			e.counters.Events++
			return e.malformed(err)
		})
		return err
	}
	e.Ingest(ev)
	return nil
}

// GetState returns a snapshot of the current view model
func (e *Engine) GetState() ViewModel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewModel()
}

// Lang returns the current target language
func (e *Engine) Lang() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lang
}

// Mode returns the operating mode derived from the languages
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SegmenterState exposes the segmenter's state for diagnostics
func (e *Engine) SegmenterState() segmenter.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.segmenter.State()
}

// Reset discards caption state (live line, tracked utterances, commit log,
// counters) and hard-resets the segmenter. Configuration and connection
// status are kept.
func (e *Engine) Reset() {
	e.submit(func() []notice {
		e.resetState()
		return e.project()
	})
}

// SetLang switches the target language and resets caption state
func (e *Engine) SetLang(lang string) error {
	if lang == "" {
		return ErrMissingLang
	}
	e.submit(func() []notice {
		e.lang = lang
		e.mode = modeFor(lang, e.opts.SourceLang)
		e.logger = e.newLogger()
		if ls, ok := e.segmenter.(LangSetter); ok {
			ls.SetLang(lang)
		}
		e.segmenter.SoftReset()
		e.resetState()
		e.logger.Info().Str("mode", e.mode.String()).Msg("Caption language changed")
		return e.project()
	})
	return nil
}

// SetStatus records a connection status transition. err, when set, is passed
// on to status listeners as the message.
func (e *Engine) SetStatus(status Status, err error) {
	e.submit(func() []notice {
		if status == e.status && err == nil {
			return nil
		}
		e.status = status
		observability.SetConnectionStatus(string(status))

		ev := StatusEvent{Status: status, Type: "connection"}
		if err != nil {
			ev.Message = err.Error()
			e.counters.Errors++
			e.counters.LastError = ev.Message
		}
		return append([]notice{{status: &ev}}, e.project()...)
	})
}

// OnState registers a view model listener
func (e *Engine) OnState(fn func(ViewModel)) Subscription {
	return addListener(&e.listeners, &e.listeners.state, fn)
}

// OnTTS registers a listener for tts/* events
func (e *Engine) OnTTS(fn func(TTSEvent)) Subscription {
	return addListener(&e.listeners, &e.listeners.tts, fn)
}

// OnStatus registers a listener for connection and session status
func (e *Engine) OnStatus(fn func(StatusEvent)) Subscription {
	return addListener(&e.listeners, &e.listeners.status, fn)
}

// OnWarn registers a listener for ignored defects
func (e *Engine) OnWarn(fn func(Warning)) Subscription {
	return addListener(&e.listeners, &e.listeners.warn, fn)
}

// Off removes a listener. It reports whether sub was registered.
func (e *Engine) Off(sub Subscription) bool {
	return e.listeners.remove(sub)
}

// Replay feeds events into a fresh engine built from opts and returns the
// final view model
func Replay(opts Options, events []Event) (ViewModel, error) {
	e, err := New(opts)
	if err != nil {
		return ViewModel{}, err
	}
	for _, ev := range events {
		e.Ingest(ev)
	}
	return e.GetState(), nil
}

// submit queues op and, unless an update is already being applied, drains
// the queue: each op runs under the state lock and its notices are delivered
// after the lock is released.
func (e *Engine) submit(op func() []notice) {
	e.queueMu.Lock()
	e.queue = append(e.queue, op)
	if e.draining {
		e.queueMu.Unlock()
		return
	}
	e.draining = true

	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.queueMu.Unlock()

		e.deliver(e.run(next))

		e.queueMu.Lock()
	}
	e.draining = false
	e.queueMu.Unlock()
}

func (e *Engine) run(op func() []notice) (notices []notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Caption update panicked")
			notices = []notice{{warn: &Warning{Kind: "internal", Message: fmt.Sprint(r)}}}
		}
	}()
	return op()
}

func (e *Engine) apply(ev Event) []notice {
	start := time.Now()
	defer func() {
		observability.ObserveIngest(time.Since(start))
	}()

	e.counters.Events++
	if ev == nil {
		e.counters.Unknown++
		e.counters.LastEventType = ""
		observability.RecordEvent("unknown")
		return nil
	}
	e.counters.LastEventType = ev.Type()

	switch ev := ev.(type) {
	case TranslationEvent:
		observability.RecordEvent("translation")
		return e.applyTranslation(ev)

	case LifecycleEvent:
		observability.RecordEvent("lifecycle")
		e.logger.Debug().Str("type", ev.Kind).Msg("Session lifecycle event")
		return []notice{{status: &StatusEvent{Status: e.status, Type: ev.Kind, Raw: ev.Raw}}}

	case TTSEvent:
		observability.RecordEvent("tts")
		return []notice{{tts: &ev}}

	case ErrorEvent:
		observability.RecordEvent("error")
		e.counters.Errors++
		e.counters.LastError = ev.Message
		e.logger.Warn().Str("code", ev.Code).Str("message", ev.Message).Msg("Server reported an error")
		return []notice{{status: &StatusEvent{Status: e.status, Type: TypeError, Message: ev.Message, Raw: ev.Raw}}}

	default:
		observability.RecordEvent("unknown")
		e.counters.Unknown++
		if e.opts.Debug {
			e.logger.Debug().Str("type", ev.Type()).Msg("Ignoring unknown event")
		}
		return nil
	}
}

func (e *Engine) malformed(err error) []notice {
	e.counters.Malformed++
	observability.RecordDrop("malformed")
	return []notice{{warn: &Warning{Kind: "malformed_event", Message: err.Error(), Err: err}}}
}

func (e *Engine) applyTranslation(ev TranslationEvent) []notice {
	if err := ev.validate(); err != nil {
		return e.malformed(err)
	}
	if !strings.EqualFold(ev.TargetLang, e.lang) {
		e.counters.OffLanguage++
		observability.RecordDrop("off_language")
		return nil
	}

	if ev.IsPartial {
		e.applyPartial(ev)
	} else {
		e.applyFinal(ev)
	}
	return e.project()
}

func (e *Engine) applyPartial(ev TranslationEvent) {
	src := ev.SourceSeqID
	seg := e.tracker.get(src)
	if v := gatePartial(seg, ev.SeqID, e.tracker.evicted(src)); !v.admitted() {
		e.drop(v, ev, seg)
		return
	}
	e.advance(ev.SeqID)

	if seg == nil {
		seg = e.tracker.openSegment(src)
	}
	seg.observe(ev)

	sel := selectText(ev, e.mode)
	if !sel.ok() {
		return
	}
	if !e.live.active || e.live.sourceSeqID != src {
		e.segmenter.Reset()
		e.live = liveLine{active: true, sourceSeqID: src}
	}
	res := e.segmenter.ProcessPartial(sel.display)
	e.live.text = res.LiveText
	e.live.original = sel.source
}

func (e *Engine) applyFinal(ev TranslationEvent) {
	src := ev.SourceSeqID
	seg := e.tracker.get(src)
	sel := selectText(ev, e.mode)
	normalized := Normalize(sel.display)

	switch v := gateFinal(seg, normalized, e.tracker.evicted(src)); v {
	case dropDuplicateFinal:
		if seg != nil && !sel.ok() && e.correctSource(seg, ev, sel) {
			e.advance(ev.SeqID)
			return
		}
		e.drop(v, ev, seg)
		return
	case admitCorrection:
		e.advance(ev.SeqID)
		e.applyCorrection(seg, ev, sel, normalized)
		return
	}
	e.advance(ev.SeqID)

	if seg == nil {
		seg = e.tracker.openSegment(src)
	}
	seg.observe(ev)

	if e.live.active && e.live.sourceSeqID == src {
		e.live = liveLine{}
		e.segmenter.Reset()
	}
	if sel.ok() {
		e.commit(seg, ev, sel, normalized)
	}

	from := seg.state()
	e.tracker.finalize(seg, ev.SeqID, ev.ForceFinal)
	if e.opts.Debug {
		e.logger.Debug().
			Int64("source_seq_id", src).
			Int64("seq_id", ev.SeqID).
			Bool("forced", ev.ForceFinal).
			Stringer("from", from).
			Stringer("to", seg.state()).
			Str("original", seg.lastOriginal).
			Str("corrected", seg.lastCorrected).
			Str("translated", seg.lastTranslated).
			Bool("saw_correction", seg.sawCorrection).
			Int("tracked", e.tracker.size()).
			Msg("Utterance finalized")
	}
}

// advance records the largest seqId of an admitted event
func (e *Engine) advance(seqID int64) {
	if seqID > e.seq {
		e.seq = seqID
	}
}

func (e *Engine) commit(seg *segment, ev TranslationEvent, sel selection, normalized string) {
	sentences := e.sentences(sel.display, ev.ForceFinal)
	added, trimmed := e.log.append(sentences, sel.source, ev.SeqID, seg.sourceSeqID, sel.corrected)

	seg.committed = added > 0
	seg.committedNormalized = normalized
	seg.committedSource = sel.source

	observability.RecordCommit(added)
	if trimmed > 0 {
		observability.RecordTrimmedLines(trimmed)
	}
}

func (e *Engine) applyCorrection(seg *segment, ev TranslationEvent, sel selection, normalized string) {
	seg.observe(ev)
	if !seg.committed {
		e.commit(seg, ev, sel, normalized)
		return
	}

	sentences := e.sentences(sel.display, ev.ForceFinal)
	if !e.log.correct(sentences, sel.source, seg.sourceSeqID) {
		e.logger.Debug().Int64("source_seq_id", seg.sourceSeqID).Msg("Correction target already trimmed from commit log")
	} else {
		e.counters.Corrections++
		observability.RecordCorrection(string(ev.UpdateType))
	}
	seg.committedNormalized = normalized
	seg.committedSource = sel.source
}

// correctSource applies a late update that changes only the source text of a
// committed utterance, such as a grammar fix arriving before its translation.
func (e *Engine) correctSource(seg *segment, ev TranslationEvent, sel selection) bool {
	if !seg.committed || sel.source == "" || sel.source == seg.committedSource {
		return false
	}
	if !e.log.correctOriginal(sel.source, seg.sourceSeqID) {
		return false
	}
	seg.observe(ev)
	seg.committedSource = sel.source
	e.counters.Corrections++
	observability.RecordCorrection(string(ev.UpdateType))
	return true
}

// sentences asks the segmenter to flush a final. A final is never lost: if
// the segmenter returns nothing, the whole text is one line.
func (e *Engine) sentences(text string, forced bool) []string {
	res := e.segmenter.ProcessFinal(text, segmenter.FinalOptions{IsForced: forced})
	if len(res.FlushedSentences) == 0 {
		return []string{text}
	}
	return res.FlushedSentences
}

func (e *Engine) drop(v verdict, ev TranslationEvent, seg *segment) {
	switch v {
	case dropOutOfOrder:
		e.counters.OutOfOrder++
	case dropLatePartial:
		e.counters.PartialsAfterFinal++
	case dropDuplicateFinal:
		e.counters.DuplicateFinals++
	}
	observability.RecordDrop(v.String())

	if e.opts.Debug {
		e.logger.Debug().
			Str("reason", v.String()).
			Int64("seq_id", ev.SeqID).
			Int64("source_seq_id", ev.SourceSeqID).
			Bool("partial", ev.IsPartial).
			Stringer("segment", seg.state()).
			Msg("Dropped translation event")
	}
}

func (e *Engine) resetState() {
	e.seq = 0
	e.tracker = newTracker(e.opts.HistoryHorizon)
	e.log = newCommitLog(e.opts.MaxCommittedLines)
	e.live = liveLine{}
	e.counters = DebugCounters{}
	e.segmenter.HardReset()
}

func (e *Engine) viewModel() ViewModel {
	vm := ViewModel{
		Status:         e.status,
		Lang:           e.lang,
		SourceLang:     e.opts.SourceLang,
		Seq:            e.seq,
		LiveLine:       e.live.text,
		LiveOriginal:   e.live.original,
		CommittedLines: e.log.snapshot(),
	}
	if e.opts.Debug {
		counters := e.counters
		vm.Debug = &counters
	}
	return vm
}

// project snapshots the state and returns a state notice unless the captions
// are unchanged since the last emission
func (e *Engine) project() []notice {
	vm := e.viewModel()
	if !e.projector.changed(vm) {
		return nil
	}
	return []notice{{state: &vm}}
}

func (e *Engine) deliver(notices []notice) {
	for _, n := range notices {
		switch {
		case n.state != nil:
			for _, l := range snapshot(&e.listeners, &e.listeners.state) {
				vm := n.state.Clone()
				e.safeCall("state", func() { l.fn(vm) })
			}
		case n.tts != nil:
			for _, l := range snapshot(&e.listeners, &e.listeners.tts) {
				ev := *n.tts
				ev.Raw = cloneRaw(ev.Raw)
				e.safeCall("tts", func() { l.fn(ev) })
			}
		case n.status != nil:
			for _, l := range snapshot(&e.listeners, &e.listeners.status) {
				ev := *n.status
				ev.Raw = cloneRaw(ev.Raw)
				e.safeCall("status", func() { l.fn(ev) })
			}
		case n.warn != nil:
			e.warn(*n.warn)
		}
	}
}

func (e *Engine) warn(w Warning) {
	logger := e.loggerSnapshot()
	logger.Warn().Str("kind", w.Kind).Msg(w.Message)
	for _, l := range snapshot(&e.listeners, &e.listeners.warn) {
		e.safeCall("warn", func() { l.fn(w) })
	}
}

// safeCall runs a listener, turning a panic into a warning
func (e *Engine) safeCall(kind string, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("%s listener panicked: %v", kind, r)
		observability.RecordListenerPanic(kind)

		e.mu.Lock()
		e.counters.ListenerPanics++
		e.mu.Unlock()

		if kind == "warn" {
			logger := e.loggerSnapshot()
			logger.Error().Err(err).Msg("Warn listener panicked")
			return
		}
		e.warn(Warning{Kind: "listener_panic", Message: err.Error(), Err: err})
	}()
	fn()
}

func (e *Engine) loggerSnapshot() zerolog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logger
}
