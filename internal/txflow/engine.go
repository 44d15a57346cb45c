package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultDeposit/internal/chain"
	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/model"
)

// Writer simulates and submits calls for the connected account.
// wallet.Signer satisfies it.
type Writer interface {
	Simulate(ctx context.Context, call contracts.Call) error
	Submit(ctx context.Context, call contracts.Call) (common.Hash, error)
}

// ConfirmationSource reports how many confirmations a transaction has.
// chain.Client satisfies it.
type ConfirmationSource interface {
	TransactionConfirmations(ctx context.Context, hash common.Hash) (uint64, error)
}

// PollConfig controls confirmation polling. A zero Timeout or MaxAttempts
// leaves that bound off. Retries is the number of extra attempts per poll
// for transient query errors.
type PollConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
	Retries     uint
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	return p
}

var errSuperseded = errors.New("step superseded")

// Engine drives one action through idle, pending, waiting and a terminal
// state. Every state change is published to the OnChange hook in order.
type Engine struct {
	index    int
	action   Action
	writer   Writer
	source   ConfirmationSource
	required uint64
	poll     PollConfig
	logger   *zap.Logger

	// emitMu serializes transitions with their notifications.
	emitMu   sync.Mutex
	mu       sync.Mutex
	step     model.TransactionStep
	gen      uint64
	cancel   context.CancelFunc
	onChange func(model.TransactionStep)
}

// NewEngine builds an idle engine for the step at index.
func NewEngine(index int, action Action, writer Writer, source ConfirmationSource, required uint64, poll PollConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		index:    index,
		action:   action,
		writer:   writer,
		source:   source,
		required: required,
		poll:     poll.withDefaults(),
		logger:   logger.With(zap.Int("step", index), zap.String("title", action.Title())),
	}
	e.step = e.idleStep()
	return e
}

// OnChange registers the hook that receives every new snapshot.
func (e *Engine) OnChange(fn func(model.TransactionStep)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Snapshot returns a copy of the current step.
func (e *Engine) Snapshot() model.TransactionStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Trigger moves an idle engine to pending and runs the action in the
// background. onSuccess runs once, after the success state is published.
func (e *Engine) Trigger(ctx context.Context, onSuccess func()) error {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if e.step.Status != model.StepIdle {
		status := e.step.Status
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotIdle, status)
	}
	e.gen++
	gen := e.gen
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.step = e.idleStep()
	e.step.Status = model.StepPending
	snapshot, notify := e.step, e.onChange
	e.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	e.logger.Info("step pending")

	go e.run(runCtx, cancel, gen, onSuccess)
	return nil
}

// Reset stops any in-flight work and returns the engine to idle.
func (e *Engine) Reset() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	e.invalidateLocked()
	e.step = e.idleStep()
	snapshot, notify := e.step, e.onChange
	e.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// Stop halts polling without touching the step. A submitted transaction is
// unaffected and onSuccess will not run.
func (e *Engine) Stop() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	e.invalidateLocked()
	e.mu.Unlock()
}

func (e *Engine) invalidateLocked() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) idleStep() model.TransactionStep {
	return model.TransactionStep{
		Index:  e.index,
		Title:  e.action.Title(),
		Status: model.StepIdle,
	}
}

// apply mutates the step if gen is still current and publishes the result.
func (e *Engine) apply(gen uint64, mutate func(*model.TransactionStep)) bool {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return false
	}
	mutate(&e.step)
	snapshot, notify := e.step, e.onChange
	e.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return true
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, gen uint64, onSuccess func()) {
	defer cancel()

	call, err := e.action.Prepare(ctx)
	if err == nil {
		err = e.writer.Simulate(ctx, call)
	}
	if err != nil {
		e.fail(ctx, gen, ErrSimulationFailed, err, e.action.FailureMessage())
		return
	}

	hash, err := e.writer.Submit(ctx, call)
	if err != nil {
		e.fail(ctx, gen, ErrSubmissionRejected, err, shortMessage(err))
		return
	}

	if !e.apply(gen, func(s *model.TransactionStep) {
		s.Status = model.StepWaiting
		s.TransactionHash = hash.Hex()
	}) {
		return
	}
	e.logger.Info("step waiting",
		zap.String("tx_hash", hash.Hex()),
		zap.Uint64("required_confirmations", e.required),
	)

	confirmations, err := e.awaitConfirmations(ctx, gen, hash)
	if err != nil {
		if errors.Is(err, errSuperseded) {
			return
		}
		e.fail(ctx, gen, ErrConfirmationPollFailed, err, shortMessage(err))
		return
	}

	if !e.apply(gen, func(s *model.TransactionStep) {
		s.Status = model.StepSuccess
		s.Confirmations = confirmations
	}) {
		return
	}
	e.logger.Info("step success",
		zap.String("tx_hash", hash.Hex()),
		zap.Uint64("confirmations", confirmations),
	)

	if onSuccess != nil {
		onSuccess()
	}
}

func (e *Engine) fail(ctx context.Context, gen uint64, kind, cause error, message string) {
	// A cancelled run was stopped or reset; the step keeps its last state.
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	stepErr := &StepError{Kind: kind, Err: cause}
	if !e.apply(gen, func(s *model.TransactionStep) {
		s.Status = model.StepError
		s.ErrorMessage = message
		s.Err = stepErr
	}) {
		return
	}
	e.logger.Warn("step failed", zap.Error(stepErr))
}

func (e *Engine) awaitConfirmations(ctx context.Context, gen uint64, hash common.Hash) (uint64, error) {
	pollCtx := ctx
	if e.poll.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, e.poll.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(e.poll.Interval)
	defer ticker.Stop()

	var last uint64
	for attempt := 1; ; attempt++ {
		if err := pollCtx.Err(); err != nil {
			return 0, e.pollError(ctx, pollCtx, err)
		}
		confirmations, err := e.queryConfirmations(pollCtx, hash)
		if err != nil {
			return 0, e.pollError(ctx, pollCtx, err)
		}
		e.logger.Debug("confirmation poll",
			zap.Int("attempt", attempt),
			zap.Uint64("confirmations", confirmations),
		)
		if confirmations >= e.required {
			return confirmations, nil
		}
		if confirmations != last {
			last = confirmations
			if !e.apply(gen, func(s *model.TransactionStep) { s.Confirmations = confirmations }) {
				return 0, errSuperseded
			}
		}
		if e.poll.MaxAttempts > 0 && attempt >= e.poll.MaxAttempts {
			return 0, fmt.Errorf("%d of %d confirmations after %d polls", confirmations, e.required, attempt)
		}

		select {
		case <-pollCtx.Done():
			return 0, e.pollError(ctx, pollCtx, pollCtx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Engine) pollError(ctx, pollCtx context.Context, err error) error {
	if ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("no confirmation within %s", e.poll.Timeout)
	}
	return err
}

func (e *Engine) queryConfirmations(ctx context.Context, hash common.Hash) (uint64, error) {
	operation := func() (uint64, error) {
		confirmations, err := e.source.TransactionConfirmations(ctx, hash)
		if errors.Is(err, chain.ErrTransactionReverted) {
			return 0, backoff.Permanent(err)
		}
		return confirmations, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.poll.Interval / 4
	policy.MaxInterval = e.poll.Interval

	notify := func(err error, wait time.Duration) {
		e.logger.Debug("confirmation query retry", zap.Error(err), zap.Duration("backoff", wait))
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.poll.Retries+1),
		backoff.WithNotify(notify))
}
