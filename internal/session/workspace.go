package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"whitepaper-console/internal/jobs"
	"whitepaper-console/internal/shared/metrics"
	"whitepaper-console/internal/shared/telemetry"
	"whitepaper-console/internal/shared/util"
	"whitepaper-console/internal/upstream"
)

var (
	ErrNoDocument = errors.New("no document in session")
	ErrNotReady   = errors.New("document is not ready for analysis")
	ErrNoReport   = errors.New("analysis report is not available")
	ErrClosed     = errors.New("session is closed")
)

const (
	kindIngestion = "ingestion"
	kindAnalysis  = "analysis"
)

// Phase is the lifecycle position of one workflow.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePolling  Phase = "polling"
	PhaseResolved Phase = "resolved"
	PhaseFailed   Phase = "failed"
)

// WorkflowState is the client-facing view of one workflow: last upstream
// status, estimated progress, and a displayable message.
type WorkflowState struct {
	Phase    Phase  `json:"phase"`
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DocumentRef identifies the workspace's current subject document.
type DocumentRef struct {
	ID       string `json:"documentId"`
	FileName string `json:"fileName,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Snapshot is one complete view of a workspace. Watchers receive a fresh
// Snapshot on every state change.
type Snapshot struct {
	Document  *DocumentRef  `json:"document,omitempty"`
	Ingestion WorkflowState `json:"ingestion"`
	Analysis  WorkflowState `json:"analysis"`
	HasReport bool          `json:"hasReport"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Config carries the polling knobs. Zero values fall back to production
// defaults; NewTicker exists so tests can drive ticks by hand.
type Config struct {
	IngestInterval    time.Duration
	AnalysisInterval  time.Duration
	IngestDeadline    time.Duration
	AnalysisDeadline  time.Duration
	StillWorkingTicks int

	NewTicker func(d time.Duration) (<-chan time.Time, func())
}

func (c Config) withDefaults() Config {
	if c.IngestInterval <= 0 {
		c.IngestInterval = 2 * time.Second
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = 3 * time.Second
	}
	if c.IngestDeadline <= 0 {
		c.IngestDeadline = 15 * time.Minute
	}
	if c.AnalysisDeadline <= 0 {
		c.AnalysisDeadline = 10 * time.Minute
	}
	if c.StillWorkingTicks <= 0 {
		c.StillWorkingTicks = 20
	}
	return c
}

// Workspace holds one caller's document and the two poll workflows attached
// to it. Poll loops report back through epoch-guarded apply callbacks, so a
// fetch that resolves after the subject changed is discarded instead of
// mutating the new subject's state.
type Workspace struct {
	owner string
	cfg   Config
	pipe  upstream.Pipeline

	mu            sync.Mutex
	closed        bool
	doc           *DocumentRef
	ingest        WorkflowState
	analysis      WorkflowState
	ingestEpoch   int
	analysisEpoch int
	ingestRun     *jobs.Runner
	analysisRun   *jobs.Runner
	report        json.RawMessage
	tokenPrint    string
	lastSeen      time.Time

	subs    map[int]chan Snapshot
	nextSub int
}

func newWorkspace(owner string, pipe upstream.Pipeline, cfg Config) *Workspace {
	return &Workspace{
		owner:    owner,
		cfg:      cfg.withDefaults(),
		pipe:     pipe,
		ingest:   WorkflowState{Phase: PhaseIdle},
		analysis: WorkflowState{Phase: PhaseIdle},
		lastSeen: time.Now(),
		subs:     make(map[int]chan Snapshot),
	}
}

// BeginIngest makes doc the workspace subject and starts polling its
// ingestion job. Any workflows attached to the previous subject are torn
// down first.
func (w *Workspace) BeginIngest(token string, doc DocumentRef, initialStatus string) Snapshot {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}
	}
	w.teardownLocked()
	w.doc = &doc
	w.report = nil
	w.tokenPrint = util.Fingerprint(token)
	w.analysis = WorkflowState{Phase: PhaseIdle}

	status := jobs.Normalize(initialStatus)
	w.ingest = WorkflowState{
		Phase:    PhasePolling,
		Status:   status,
		Progress: jobs.ProgressSeed,
		Message:  waitingMessage(kindIngestion, status, 0, w.cfg.StillWorkingTicks),
	}
	epoch := w.ingestEpoch
	metrics.IncIngestStarted()
	telemetry.Info("session.ingest_started", map[string]any{
		"owner":       w.owner,
		"document_id": doc.ID,
		"file_name":   doc.FileName,
		"source":      doc.Source,
	})

	if jobs.Terminal(status) {
		w.mu.Unlock()
		w.applyIngest(epoch, jobs.Observation{Status: status}, 0)
		return w.Snapshot()
	}

	runner := &jobs.Runner{
		Interval:   w.cfg.IngestInterval,
		MaxElapsed: w.cfg.IngestDeadline,
		Kind:       kindIngestion,
		JobID:      doc.ID,
		NewTicker:  w.cfg.NewTicker,
	}
	pollCtx := upstream.WithCallerToken(context.Background(), token)
	docID := doc.ID
	runner.Fetch = func(ctx context.Context) (jobs.Observation, error) {
		st, err := w.pipe.DocumentStatus(ctx, docID)
		if err != nil {
			return jobs.Observation{}, err
		}
		return jobs.Observation{Status: st.Status, Detail: st.ErrorMessage}, nil
	}
	runner.Apply = func(obs jobs.Observation, tick int) bool {
		return w.applyIngest(epoch, obs, tick)
	}
	runner.OnDeadline = func() { w.expire(kindIngestion, epoch) }
	w.ingestRun = runner
	snap := w.publishLocked()
	w.mu.Unlock()

	runner.Start(pollCtx)
	return snap
}

// BeginAnalysis asks the pipeline to analyze the current document and starts
// polling the resulting job. A generate reply that is already terminal skips
// polling entirely. Calling it again regenerates: the prior analysis loop is
// cancelled and its late results discarded.
func (w *Workspace) BeginAnalysis(ctx context.Context, token string) (Snapshot, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if w.doc == nil {
		w.mu.Unlock()
		return Snapshot{}, ErrNoDocument
	}
	if w.ingest.Phase != PhaseResolved {
		w.mu.Unlock()
		return Snapshot{}, ErrNotReady
	}
	docID := w.doc.ID

	w.stopAnalysisLocked()
	w.report = nil
	w.tokenPrint = util.Fingerprint(token)
	w.analysis = WorkflowState{
		Phase:    PhasePolling,
		Progress: jobs.ProgressSeed,
		Message:  "Requesting analysis",
	}
	epoch := w.analysisEpoch
	metrics.IncAnalysisStarted()
	telemetry.Info("session.analysis_started", map[string]any{
		"owner":       w.owner,
		"document_id": docID,
	})
	w.publishLocked()
	w.mu.Unlock()

	gen, err := w.pipe.GenerateAnalysis(upstream.WithCallerToken(ctx, token), docID)
	if err != nil {
		w.mu.Lock()
		if epoch == w.analysisEpoch && !w.closed {
			w.analysis = WorkflowState{Phase: PhaseIdle}
			w.publishLocked()
		}
		w.mu.Unlock()
		return Snapshot{}, err
	}

	first := jobs.Observation{Status: gen.Status, Detail: gen.ErrorMessage, Payload: gen.Report}
	if !w.applyAnalysis(epoch, first, 0) {
		return w.Snapshot(), nil
	}

	runner := &jobs.Runner{
		Interval:   w.cfg.AnalysisInterval,
		MaxElapsed: w.cfg.AnalysisDeadline,
		Kind:       kindAnalysis,
		JobID:      docID,
		NewTicker:  w.cfg.NewTicker,
	}
	runner.Fetch = func(ctx context.Context) (jobs.Observation, error) {
		st, err := w.pipe.Analysis(ctx, docID)
		if err != nil {
			return jobs.Observation{}, err
		}
		return jobs.Observation{Status: st.Status, Detail: st.ErrorMessage, Payload: st.Report}, nil
	}
	runner.Apply = func(obs jobs.Observation, tick int) bool {
		return w.applyAnalysis(epoch, obs, tick)
	}
	runner.OnDeadline = func() { w.expire(kindAnalysis, epoch) }

	w.mu.Lock()
	if epoch != w.analysisEpoch || w.closed {
		w.mu.Unlock()
		return w.Snapshot(), nil
	}
	w.analysisRun = runner
	w.mu.Unlock()

	runner.Start(upstream.WithCallerToken(context.Background(), token))
	return w.Snapshot(), nil
}

func (w *Workspace) applyIngest(epoch int, obs jobs.Observation, tick int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || epoch != w.ingestEpoch {
		return false
	}

	status := jobs.Normalize(obs.Status)
	prev := w.ingest.Status
	if tick > 0 || jobs.Acknowledged(status) || jobs.Terminal(status) {
		w.ingest.Progress = jobs.Advance(w.ingest.Progress, status)
	}
	w.ingest.Status = status

	switch status {
	case jobs.StatusCompleted:
		w.ingest.Phase = PhaseResolved
		w.ingest.Message = "Document ready"
		w.ingest.Error = ""
		metrics.IncIngestCompleted()
	case jobs.StatusFailed:
		w.ingest.Phase = PhaseFailed
		w.ingest.Error = failureMessage(obs.Detail)
		w.ingest.Message = w.ingest.Error
		metrics.IncIngestFailed()
	default:
		w.ingest.Phase = PhasePolling
		w.ingest.Message = waitingMessage(kindIngestion, status, tick, w.cfg.StillWorkingTicks)
	}

	if status != prev {
		telemetry.Info("job.status_transition", map[string]any{
			"kind":        kindIngestion,
			"owner":       w.owner,
			"document_id": w.currentDocIDLocked(),
			"from":        prev,
			"to":          status,
			"tick":        tick,
		})
	}
	w.publishLocked()
	return w.ingest.Phase == PhasePolling
}

func (w *Workspace) applyAnalysis(epoch int, obs jobs.Observation, tick int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || epoch != w.analysisEpoch {
		return false
	}

	status := jobs.Normalize(obs.Status)
	prev := w.analysis.Status
	if tick > 0 || jobs.Acknowledged(status) || jobs.Terminal(status) {
		w.analysis.Progress = jobs.Advance(w.analysis.Progress, status)
	}
	w.analysis.Status = status

	switch status {
	case jobs.StatusCompleted:
		w.analysis.Phase = PhaseResolved
		w.analysis.Message = "Analysis ready"
		w.analysis.Error = ""
		w.report = obs.Payload
		metrics.IncAnalysisCompleted()
	case jobs.StatusFailed:
		w.analysis.Phase = PhaseFailed
		w.analysis.Error = failureMessage(obs.Detail)
		w.analysis.Message = w.analysis.Error
		metrics.IncAnalysisFailed()
	default:
		w.analysis.Phase = PhasePolling
		w.analysis.Message = waitingMessage(kindAnalysis, status, tick, w.cfg.StillWorkingTicks)
	}

	if status != prev {
		telemetry.Info("job.status_transition", map[string]any{
			"kind":        kindAnalysis,
			"owner":       w.owner,
			"document_id": w.currentDocIDLocked(),
			"from":        prev,
			"to":          status,
			"tick":        tick,
		})
	}
	w.publishLocked()
	return w.analysis.Phase == PhasePolling
}

// expire marks a workflow failed after its poll deadline passed with no
// terminal status.
func (w *Workspace) expire(kind string, epoch int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	switch kind {
	case kindIngestion:
		if epoch != w.ingestEpoch || w.ingest.Phase != PhasePolling {
			return
		}
		w.ingest.Phase = PhaseFailed
		w.ingest.Error = "Timed out waiting for the pipeline"
		w.ingest.Message = w.ingest.Error
		metrics.IncIngestFailed()
	case kindAnalysis:
		if epoch != w.analysisEpoch || w.analysis.Phase != PhasePolling {
			return
		}
		w.analysis.Phase = PhaseFailed
		w.analysis.Error = "Timed out waiting for the analysis"
		w.analysis.Message = w.analysis.Error
		metrics.IncAnalysisFailed()
	}
	w.publishLocked()
}

// ObserveToken records the caller's current bearer token. A change while an
// analysis is attached resets only the analysis workflow: the ingestion job
// belongs to the document, the analysis to the authenticated caller.
func (w *Workspace) ObserveToken(token string) {
	print := util.Fingerprint(token)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
	if w.closed || w.tokenPrint == print {
		return
	}
	had := w.analysis.Phase != PhaseIdle
	w.tokenPrint = print
	if !had {
		return
	}
	telemetry.Info("session.auth_change", map[string]any{
		"owner":       w.owner,
		"document_id": w.currentDocIDLocked(),
	})
	w.resetAnalysisLocked()
	w.publishLocked()
}

// Reset clears the subject and tears down both workflows. The workspace
// stays usable for a new submission.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.resetLocked()
	telemetry.Info("session.reset", map[string]any{"owner": w.owner})
	w.publishLocked()
}

// DropDocument resets the workspace only if documentID is the current
// subject. Deleting some other stored document leaves the session alone.
func (w *Workspace) DropDocument(documentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.doc == nil || w.doc.ID != documentID {
		return
	}
	w.resetLocked()
	telemetry.Info("session.reset", map[string]any{"owner": w.owner, "document_id": documentID})
	w.publishLocked()
}

func (w *Workspace) resetLocked() {
	w.teardownLocked()
	w.doc = nil
	w.ingest = WorkflowState{Phase: PhaseIdle}
	w.analysis = WorkflowState{Phase: PhaseIdle}
	w.report = nil
}

// Close tears the workspace down for good and wakes all watchers.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.teardownLocked()
	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
	}
	telemetry.Info("session.closed", map[string]any{"owner": w.owner})
	w.mu.Unlock()
}

// Subscribe registers a watcher. The returned cancel must be called when the
// watcher goes away; after Close the channel is closed by the workspace.
func (w *Workspace) Subscribe() (<-chan Snapshot, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Snapshot, 16)
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(sub)
		}
	}
}

// Snapshot returns the current state of the workspace.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Report returns the completed analysis payload.
func (w *Workspace) Report() (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.analysis.Phase != PhaseResolved || len(w.report) == 0 {
		return nil, ErrNoReport
	}
	return w.report, nil
}

// Document returns the current subject, if any.
func (w *Workspace) Document() (DocumentRef, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil {
		return DocumentRef{}, false
	}
	return *w.doc, true
}

// Idle reports whether the workspace can be reaped: nothing polling, nobody
// watching, and no activity since cutoff.
func (w *Workspace) Idle(cutoff time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ingest.Phase == PhasePolling || w.analysis.Phase == PhasePolling {
		return false
	}
	return len(w.subs) == 0 && w.lastSeen.Before(cutoff)
}

func (w *Workspace) teardownLocked() {
	w.ingestEpoch++
	w.analysisEpoch++
	if w.ingestRun != nil {
		w.ingestRun.Stop()
		w.ingestRun = nil
	}
	w.stopAnalysisRunnerLocked()
}

func (w *Workspace) stopAnalysisLocked() {
	w.analysisEpoch++
	w.stopAnalysisRunnerLocked()
}

func (w *Workspace) stopAnalysisRunnerLocked() {
	if w.analysisRun != nil {
		w.analysisRun.Stop()
		w.analysisRun = nil
	}
}

func (w *Workspace) resetAnalysisLocked() {
	w.stopAnalysisLocked()
	w.analysis = WorkflowState{Phase: PhaseIdle}
	w.report = nil
}

func (w *Workspace) currentDocIDLocked() string {
	if w.doc == nil {
		return ""
	}
	return w.doc.ID
}

func (w *Workspace) snapshotLocked() Snapshot {
	snap := Snapshot{
		Ingestion: w.ingest,
		Analysis:  w.analysis,
		HasReport: w.analysis.Phase == PhaseResolved && len(w.report) > 0,
		UpdatedAt: time.Now().UTC(),
	}
	if w.doc != nil {
		ref := *w.doc
		snap.Document = &ref
	}
	return snap
}

// publishLocked fans the current snapshot out to watchers. Slow watchers
// miss intermediate snapshots rather than block a poll loop.
func (w *Workspace) publishLocked() Snapshot {
	snap := w.snapshotLocked()
	for _, ch := range w.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}

func waitingMessage(kind, status string, tick, threshold int) string {
	if threshold > 0 && tick >= threshold {
		if kind == kindAnalysis {
			return "Analysis is taking longer than usual. Hang tight."
		}
		return "Processing is taking longer than usual. Hang tight."
	}
	switch status {
	case jobs.StatusPending:
		return "Waiting for the pipeline to accept the document"
	case jobs.StatusQueued:
		return "Queued for analysis"
	case jobs.StatusParsing:
		return "Extracting document contents"
	case jobs.StatusProcessing:
		if kind == kindAnalysis {
			return "Generating analysis"
		}
		return "Processing document"
	case "":
		return "Waiting for the pipeline"
	default:
		return "Working (" + status + ")"
	}
}

func failureMessage(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return "The pipeline reported a failure without details"
	}
	return util.SanitizeDetail(detail)
}
