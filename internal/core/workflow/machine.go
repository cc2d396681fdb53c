package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/adversary"
	"github.com/agenthands/cartographer/internal/core/conflict"
	"github.com/agenthands/cartographer/internal/core/credibility"
	"github.com/agenthands/cartographer/internal/core/extraction"
	"github.com/agenthands/cartographer/internal/core/graph"
	"github.com/agenthands/cartographer/internal/core/model"
	"github.com/agenthands/cartographer/internal/core/synthesis"
	"github.com/agenthands/cartographer/internal/search"
)

// CheckpointStore persists state snapshots between phases so a crashed
// session can resume from its last phase boundary.
type CheckpointStore interface {
	Save(state model.WorkflowState) error
	Latest(sessionID string) (model.WorkflowState, error)
}

// Exporter pushes a completed session's graph to an external sink.
type Exporter interface {
	Export(ctx context.Context, sessionID string, g model.KnowledgeGraph) error
}

// Observer is invoked after every phase with a snapshot of the state.
type Observer func(state model.WorkflowState)

// Settings are the tunables the machine reads each phase.
type Settings struct {
	MaxIterations      int
	MinSources         int
	GatherQueryRetries int
	PhaseTimeout       time.Duration
	FuzzyThreshold     float64
	Weights            credibility.Weights

	// DefaultCredibility annotates citations whose source was never
	// retrieved this session.
	DefaultCredibility float64
}

// Machine drives one research session through the phase sequence. It owns
// no state of its own between sessions; everything it learns lives in the
// WorkflowState it is handed, so a single Machine serves concurrent
// sessions.
type Machine struct {
	cfg         Settings
	collector   *search.Collector
	extractor   *extraction.Extractor
	adversary   *adversary.Adversary
	engine      *conflict.Engine
	synthesizer *synthesis.Synthesizer
	checkpoints CheckpointStore // may be nil
	exporter    Exporter        // may be nil
	observer    Observer        // may be nil
	log         *zap.Logger
	now         func() time.Time
}

// NewMachine wires the phase handlers together. checkpoints, exporter and
// observer are optional.
func NewMachine(cfg Settings, collector *search.Collector, extractor *extraction.Extractor,
	adv *adversary.Adversary, engine *conflict.Engine, synth *synthesis.Synthesizer,
	checkpoints CheckpointStore, exporter Exporter, observer Observer, log *zap.Logger) *Machine {

	if cfg.DefaultCredibility == 0 {
		cfg.DefaultCredibility = 0.5
	}
	return &Machine{
		cfg:         cfg,
		collector:   collector,
		extractor:   extractor,
		adversary:   adv,
		engine:      engine,
		synthesizer: synth,
		checkpoints: checkpoints,
		exporter:    exporter,
		observer:    observer,
		log:         log,
		now:         time.Now,
	}
}

// Start validates the topic and returns the initial state for a new
// session. Invalid topics are rejected before any session resources exist.
func (m *Machine) Start(topic string) (model.WorkflowState, error) {
	if err := model.ValidateTopic(topic); err != nil {
		return model.WorkflowState{}, err
	}
	return model.WorkflowState{
		SessionID:       uuid.New().String(),
		Topic:           topic,
		Phase:           model.PhaseGather,
		Iteration:       0,
		MaxIterations:   m.cfg.MaxIterations,
		ExecutedQueries: map[string]bool{},
		Graph:           model.KnowledgeGraph{Entities: []string{}, Relationships: []model.Relationship{}, Conflicts: []model.Conflict{}},
		Status:          model.StatusRunning,
	}, nil
}

// Resume reloads the most recent checkpoint for a session and continues
// running it. A checkpoint that fails validation is state corruption and
// the session cannot be resumed.
func (m *Machine) Resume(ctx context.Context, sessionID string) (model.WorkflowState, error) {
	if m.checkpoints == nil {
		return model.WorkflowState{}, fmt.Errorf("no checkpoint store configured")
	}
	state, err := m.checkpoints.Latest(sessionID)
	if err != nil {
		return model.WorkflowState{}, err
	}
	if state.Phase.Terminal() {
		return state, nil
	}
	m.log.Info("resuming session",
		zap.String("session_id", sessionID),
		zap.String("phase", string(state.Phase)),
		zap.Int("iteration", state.Iteration))
	return m.Run(ctx, state)
}

// Run executes phases until the state reaches a terminal phase. Each phase
// mutates the state exactly once and is checkpointed before the next phase
// starts; an unrecoverable error lands the session in the failed phase with
// the last valid snapshot's data intact.
func (m *Machine) Run(ctx context.Context, state model.WorkflowState) (model.WorkflowState, error) {
	if err := state.Validate(); err != nil {
		return state, err
	}
	store, err := graph.Restore(state, m.cfg.FuzzyThreshold, m.log)
	if err != nil {
		return m.fail(state, err), err
	}

	for !state.Phase.Terminal() {
		lastValid := state.Clone()

		phaseCtx := ctx
		cancel := func() {}
		if m.cfg.PhaseTimeout > 0 {
			phaseCtx, cancel = context.WithTimeout(ctx, m.cfg.PhaseTimeout)
		}
		event, err := m.dispatch(phaseCtx, &state, store)
		cancel()

		if err != nil {
			m.log.Error("phase failed",
				zap.String("session_id", state.SessionID),
				zap.String("phase", string(state.Phase)),
				zap.Error(err))
			failed := m.fail(lastValid, err)
			m.checkpoint(failed)
			m.notify(failed)
			return failed, err
		}

		state.Documents = store.Documents()
		state.Graph = store.Graph()

		next, err := Next(state.Phase, event)
		if err != nil {
			failed := m.fail(lastValid, err)
			m.checkpoint(failed)
			m.notify(failed)
			return failed, err
		}
		state.Phase = next

		if state.Phase == model.PhaseComplete {
			if len(state.Warnings) > 0 {
				state.Status = model.StatusCompletedWithWarnings
			} else {
				state.Status = model.StatusCompleted
			}
		}

		m.checkpoint(state)
		m.notify(state)
	}
	return state, nil
}

func (m *Machine) dispatch(ctx context.Context, state *model.WorkflowState, store *graph.Store) (Event, error) {
	if err := ctx.Err(); err != nil {
		return EventFail, err
	}
	switch state.Phase {
	case model.PhaseInit:
		return EventAdvance, nil
	case model.PhaseGather:
		return m.gather(ctx, state, store)
	case model.PhaseExtract:
		return m.extract(ctx, state, store)
	case model.PhaseCritique:
		return m.critique(ctx, state, store)
	case model.PhaseScore:
		return m.score(state, store)
	case model.PhaseSynthesize:
		return m.synthesize(ctx, state, store)
	}
	return EventFail, fmt.Errorf("%w: no handler for phase %q", model.ErrStateCorruption, state.Phase)
}

// gather runs the pending queries (or the bare topic on the first pass),
// then widens with supplemental queries until enough distinct source
// domains are in hand or the retry budget is spent. Coming up short is a
// quality warning, not a failure.
func (m *Machine) gather(ctx context.Context, state *model.WorkflowState, store *graph.Store) (Event, error) {
	queries := freshOnly(state.PendingQueries, state.ExecutedQueries)
	if len(queries) == 0 && state.Iteration == 0 {
		queries = []string{state.Topic}
	}
	if len(queries) == 0 {
		queries = m.nextSupplemental(state, 1)
	}

	if len(queries) > 0 {
		// Marked executed before dispatch so a later iteration never
		// reissues a query that already went out.
		state.MarkExecuted(queries)
		docs, err := m.collector.Fetch(ctx, queries)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EventFail, err
			}
			state.AddWarning(fmt.Sprintf("search batch failed entirely: %v", err))
		}
		store.Ingest(docs)
	}
	state.PendingQueries = nil

	for retry := 0; retry < m.cfg.GatherQueryRetries; retry++ {
		if search.DistinctDomains(store.Documents()) >= m.cfg.MinSources {
			break
		}
		supplemental := m.nextSupplemental(state, 1)
		if len(supplemental) == 0 {
			break
		}
		state.MarkExecuted(supplemental)
		docs, err := m.collector.Fetch(ctx, supplemental)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EventFail, err
			}
			m.log.Warn("supplemental query failed", zap.Strings("queries", supplemental), zap.Error(err))
			continue
		}
		store.Ingest(docs)
	}

	if got := search.DistinctDomains(store.Documents()); got < m.cfg.MinSources {
		state.AddWarning(fmt.Sprintf("gathered %d distinct source domains, wanted %d", got, m.cfg.MinSources))
	}
	if len(store.Documents()) == 0 {
		return EventFail, fmt.Errorf("%w: no documents retrieved for any query", model.ErrProviderFailure)
	}

	m.log.Info("gather complete",
		zap.String("session_id", state.SessionID),
		zap.Int("iteration", state.Iteration),
		zap.Int("documents", len(store.Documents())),
		zap.Int("distinct_domains", search.DistinctDomains(store.Documents())))
	return EventAdvance, nil
}

// extract hands the documents gathered since the last extraction to the
// LLM and merges whatever parses. A schema failure after retries degrades
// the session instead of killing it: the graph built so far still stands.
func (m *Machine) extract(ctx context.Context, state *model.WorkflowState, store *graph.Store) (Event, error) {
	docs := store.Documents()
	if state.ExtractedDocs >= len(docs) {
		return EventAdvance, nil
	}
	batch := docs[state.ExtractedDocs:]

	frag, err := m.extractor.Extract(ctx, state.Topic, batch)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return EventFail, err
		}
		state.AddWarning(fmt.Sprintf("extraction failed for %d documents: %v", len(batch), err))
		state.ExtractedDocs = len(docs)
		return EventAdvance, nil
	}

	stats, err := store.Merge(frag)
	if err != nil {
		state.AddWarning(fmt.Sprintf("extracted batch rejected: %v", err))
	} else {
		m.log.Info("extract complete",
			zap.String("session_id", state.SessionID),
			zap.Int("entities_added", stats.EntitiesAdded),
			zap.Int("relationships_added", stats.RelationshipsAdded),
			zap.Int("dropped", stats.DroppedRelationships+stats.DroppedConflicts))
	}
	state.ExtractedDocs = len(docs)
	return EventAdvance, nil
}

// critique looks for weaknesses and decides whether to loop back to
// gather. The loop needs three things at once: a non-empty weakness list,
// at least one counter-query not yet executed, and headroom under the
// iteration bound.
func (m *Machine) critique(ctx context.Context, state *model.WorkflowState, store *graph.Store) (Event, error) {
	weaknesses := m.adversary.Analyze(store.Graph(), store.Documents(), m.now())
	if len(weaknesses) == 0 {
		m.log.Info("critique found no weaknesses", zap.String("session_id", state.SessionID))
		return EventAdvance, nil
	}

	queries, err := m.adversary.CounterQueries(ctx, state.Topic, store.Graph(), weaknesses, state.ExecutedQueries)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return EventFail, err
		}
		state.AddWarning(fmt.Sprintf("counter-query generation failed: %v", err))
		return EventAdvance, nil
	}

	if len(queries) > 0 && state.Iteration+1 < state.MaxIterations {
		state.Iteration++
		state.PendingQueries = queries
		m.log.Info("critique looping back",
			zap.String("session_id", state.SessionID),
			zap.Int("iteration", state.Iteration),
			zap.Int("weaknesses", len(weaknesses)),
			zap.Int("counter_queries", len(queries)))
		return EventLoop, nil
	}
	return EventAdvance, nil
}

// score annotates every citation with its source's credibility. The
// reference clock is fixed once so scoring the same documents twice gives
// the same numbers.
func (m *Machine) score(state *model.WorkflowState, store *graph.Store) (Event, error) {
	scorer := credibility.NewScorer(m.cfg.Weights, m.now())
	scores := scorer.ScoreAll(store.Documents())
	store.Annotate(scores, m.cfg.DefaultCredibility)
	m.log.Info("score complete",
		zap.String("session_id", state.SessionID),
		zap.Int("sources_scored", len(scores)))
	return EventAdvance, nil
}

// synthesize detects and resolves conflicts, then writes the final report.
// A narrative that will not come cleanly out of the LLM degrades to an
// empty report; the graph, verdicts, consensus and battlegrounds are
// computed deterministically and survive regardless.
func (m *Machine) synthesize(ctx context.Context, state *model.WorkflowState, store *graph.Store) (Event, error) {
	detected := m.engine.Detect(store.Graph())
	if len(detected) > 0 {
		if _, err := store.Merge(graph.Fragment{Conflicts: detected}); err != nil {
			state.AddWarning(fmt.Sprintf("conflict merge rejected: %v", err))
		}
	}

	resolved := m.engine.ResolveAll(store.Graph().Conflicts)
	if err := store.SetVerdicts(resolved); err != nil {
		return EventFail, err
	}

	result, err := m.synthesizer.Synthesize(ctx, state.Topic, store.Graph())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return EventFail, err
		}
		state.AddWarning(fmt.Sprintf("report generation failed: %v", err))
		result = synthesis.Result{
			Consensus:     m.synthesizer.Consensus(store.Graph()),
			Battlegrounds: m.synthesizer.Battlegrounds(store.Graph()),
		}
	}
	state.Report = result.ReportText
	state.Consensus = result.Consensus
	state.Battlegrounds = result.Battlegrounds

	if m.exporter != nil {
		if err := m.exporter.Export(ctx, state.SessionID, store.Graph()); err != nil {
			state.AddWarning(fmt.Sprintf("graph export failed: %v", err))
		}
	}

	m.log.Info("synthesize complete",
		zap.String("session_id", state.SessionID),
		zap.Int("conflicts", len(store.Graph().Conflicts)),
		zap.Int("consensus_claims", len(state.Consensus)),
		zap.Int("battlegrounds", len(state.Battlegrounds)))
	return EventAdvance, nil
}

func (m *Machine) fail(state model.WorkflowState, cause error) model.WorkflowState {
	state.Phase = model.PhaseFailed
	state.Status = model.StatusFailed
	state.StatusMessage = cause.Error()
	return state
}

func (m *Machine) checkpoint(state model.WorkflowState) {
	if m.checkpoints == nil {
		return
	}
	if err := m.checkpoints.Save(state); err != nil {
		m.log.Warn("checkpoint save failed",
			zap.String("session_id", state.SessionID),
			zap.String("phase", string(state.Phase)),
			zap.Error(err))
	}
}

func (m *Machine) notify(state model.WorkflowState) {
	if m.observer == nil {
		return
	}
	m.observer(state.Clone())
}

var supplementalSuffixes = []string{"research", "evidence", "study", "criticism", "statistics", "analysis"}

// nextSupplemental returns up to n topic variants that have not been
// executed this session.
func (m *Machine) nextSupplemental(state *model.WorkflowState, n int) []string {
	var out []string
	for _, suffix := range supplementalSuffixes {
		q := state.Topic + " " + suffix
		if !state.Executed(q) {
			out = append(out, q)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

func freshOnly(queries []string, executed map[string]bool) []string {
	var out []string
	for _, q := range queries {
		if !executed[q] {
			out = append(out, q)
		}
	}
	return out
}
