package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaultDeposit/internal/model"
)

// ConfirmationTable maps a chain id to its required confirmation count.
// config.ChainTable satisfies it.
type ConfirmationTable interface {
	RequiredConfirmations(chainID uint64) (uint64, error)
}

// Observer receives every step snapshot of a session.
type Observer func(sessionID string, step model.TransactionStep)

// Config selects the chain the sequence runs on and how it polls.
type Config struct {
	ChainID uint64
	Table   ConfirmationTable
	Poll    PollConfig
}

// View is the aggregate state handed to the presentation layer.
type View struct {
	SessionID             string                  `json:"session_id"`
	Steps                 []model.TransactionStep `json:"steps"`
	RequiredConfirmations uint64                  `json:"required_confirmations"`
}

// Orchestrator runs its engines strictly in order. Each success posts the
// next index to a task queue; a single sequencer goroutine per session
// drains it and triggers the next engine.
type Orchestrator struct {
	engines  []*Engine
	required uint64
	logger   *zap.Logger

	mu        sync.Mutex
	observers []Observer
	cur       *session
}

type session struct {
	id        string
	tasks     chan int
	cancel    context.CancelFunc
	done      chan struct{}
	finished  chan struct{}
	once      sync.Once
	onSuccess func()
}

func (s *session) finish() {
	s.once.Do(func() { close(s.finished) })
}

// NewOrchestrator resolves the required confirmations for cfg.ChainID and
// builds one engine per action.
func NewOrchestrator(cfg Config, actions []Action, writer Writer, source ConfirmationSource, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Table == nil {
		return nil, fmt.Errorf("confirmation table is nil")
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("at least one action is required")
	}
	if writer == nil || source == nil {
		return nil, fmt.Errorf("writer and confirmation source are required")
	}
	required, err := cfg.Table.RequiredConfirmations(cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("required confirmations: %w", err)
	}

	o := &Orchestrator{
		required: required,
		logger:   logger,
	}
	for i, action := range actions {
		engine := NewEngine(i, action, writer, source, required, cfg.Poll, logger)
		engine.OnChange(o.handleChange)
		o.engines = append(o.engines, engine)
	}
	return o, nil
}

// Observe adds an observer for all future snapshots.
func (o *Orchestrator) Observe(fn Observer) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.observers = append(o.observers, fn)
	o.mu.Unlock()
}

// Open closes any previous session, resets every step to idle and starts the
// sequence from the first engine. onSuccess runs once after the last step
// succeeds.
func (o *Orchestrator) Open(ctx context.Context, onSuccess func()) string {
	o.Close()

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		id:        uuid.NewString(),
		tasks:     make(chan int, len(o.engines)+1),
		cancel:    cancel,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		onSuccess: onSuccess,
	}

	o.mu.Lock()
	o.cur = s
	o.mu.Unlock()

	for _, engine := range o.engines {
		engine.Reset()
	}

	o.logger.Info("sequence open",
		zap.String("session", s.id),
		zap.Int("steps", len(o.engines)),
		zap.Uint64("required_confirmations", o.required),
	)

	go o.sequence(runCtx, s)
	s.tasks <- 0
	return s.id
}

// Close stops polling on the active engine and ends the session. Submitted
// transactions are not affected and no continuation runs afterwards. Step
// snapshots stay readable until the next Open.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	s := o.cur
	o.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	<-s.done
	for _, engine := range o.engines {
		engine.Stop()
	}
	s.finish()
}

// Wait blocks until the session succeeds, a step fails, Close is called or
// ctx ends. It returns nil only when every step succeeded.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	s := o.cur
	o.mu.Unlock()
	if s == nil {
		return ErrNotOpen
	}

	select {
	case <-s.finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	return o.outcome()
}

// View returns the ordered step snapshots and the shared confirmation target.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	var id string
	if o.cur != nil {
		id = o.cur.id
	}
	o.mu.Unlock()

	steps := make([]model.TransactionStep, len(o.engines))
	for i, engine := range o.engines {
		steps[i] = engine.Snapshot()
	}
	return View{
		SessionID:             id,
		Steps:                 steps,
		RequiredConfirmations: o.required,
	}
}

// RequiredConfirmations is the confirmation target shared by all steps.
func (o *Orchestrator) RequiredConfirmations() uint64 {
	return o.required
}

// sequence runs until the session finishes, including on a step error.
func (o *Orchestrator) sequence(ctx context.Context, s *session) {
	defer close(s.done)
	defer s.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.finished:
			return
		case next := <-s.tasks:
			if next >= len(o.engines) {
				o.logger.Info("sequence complete", zap.String("session", s.id))
				if s.onSuccess != nil {
					s.onSuccess()
				}
				s.finish()
				return
			}

			advance := func() {
				select {
				case s.tasks <- next + 1:
				case <-ctx.Done():
				}
			}
			if err := o.engines[next].Trigger(ctx, advance); err != nil {
				o.logger.Warn("trigger step", zap.Int("step", next), zap.Error(err))
				s.finish()
				return
			}
		}
	}
}

func (o *Orchestrator) handleChange(step model.TransactionStep) {
	o.mu.Lock()
	s := o.cur
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()

	var id string
	if s != nil {
		id = s.id
	}
	for _, observer := range observers {
		observer(id, step)
	}

	if step.Status == model.StepError && s != nil {
		s.finish()
	}
}

func (o *Orchestrator) outcome() error {
	succeeded := 0
	for _, engine := range o.engines {
		step := engine.Snapshot()
		switch step.Status {
		case model.StepError:
			if step.Err != nil {
				return fmt.Errorf("step %d (%s): %w", step.Index, step.Title, step.Err)
			}
			return fmt.Errorf("step %d (%s): %s", step.Index, step.Title, step.ErrorMessage)
		case model.StepSuccess:
			succeeded++
		}
	}
	if succeeded == len(o.engines) {
		return nil
	}
	return ErrClosed
}

// IsStepError reports whether err carries one of the step error kinds.
func IsStepError(err error) bool {
	return errors.Is(err, ErrSimulationFailed) ||
		errors.Is(err, ErrSubmissionRejected) ||
		errors.Is(err, ErrConfirmationPollFailed)
}
