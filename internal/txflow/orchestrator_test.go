package txflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"vaultDeposit/internal/model"
)

const testChain = 42161

func newTestOrchestrator(t *testing.T, writer Writer, source ConfirmationSource, poll PollConfig) (*Orchestrator, *recorder) {
	t.Helper()
	actions := []Action{
		&fakeAction{title: "approve0"},
		&fakeAction{title: "approve1"},
		&fakeAction{title: "deposit"},
	}
	orch, err := NewOrchestrator(Config{
		ChainID: testChain,
		Table:   staticTable{testChain: 1},
		Poll:    poll,
	}, actions, writer, source, zap.NewNop())
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	rec := &recorder{}
	orch.Observe(rec.observe)
	t.Cleanup(orch.Close)
	return orch, rec
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOrchestratorChainsSteps(t *testing.T) {
	writer := newFakeWriter()
	source := newFakeSource(func(int) (uint64, error) { return 1, nil })
	orch, rec := newTestOrchestrator(t, writer, source, fastPoll())

	var completed atomic.Int32
	id := orch.Open(context.Background(), func() { completed.Add(1) })
	if err := orch.Wait(waitCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if completed.Load() != 1 {
		t.Fatalf("expected one completion, got %d", completed.Load())
	}
	subs := writer.submissions()
	if len(subs) != 3 || subs[0] != "approve0" || subs[1] != "approve1" || subs[2] != "deposit" {
		t.Fatalf("unexpected submission order: %v", subs)
	}

	view := orch.View()
	if view.SessionID != id || view.RequiredConfirmations != 1 || len(view.Steps) != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}
	for _, step := range view.Steps {
		if step.Status != model.StepSuccess {
			t.Fatalf("step %d not successful: %s", step.Index, step.Status)
		}
	}

	for i := 0; i < 2; i++ {
		success := rec.position(i, model.StepSuccess)
		nextPending := rec.position(i+1, model.StepPending)
		if success < 0 || nextPending < 0 || nextPending < success {
			t.Fatalf("step %d pending (%d) observed before step %d success (%d)", i+1, nextPending, i, success)
		}
	}
}

func TestOrchestratorHaltsOnFailure(t *testing.T) {
	writer := newFakeWriter()
	writer.submitErr["approve0"] = errors.New("user rejected")
	source := newFakeSource(func(int) (uint64, error) { return 1, nil })
	orch, rec := newTestOrchestrator(t, writer, source, fastPoll())

	var completed atomic.Int32
	orch.Open(context.Background(), func() { completed.Add(1) })
	err := orch.Wait(waitCtx(t))
	if !errors.Is(err, ErrSubmissionRejected) {
		t.Fatalf("expected ErrSubmissionRejected, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if rec.position(1, model.StepPending) != -1 {
		t.Fatalf("step 1 triggered after step 0 failed")
	}
	if view := orch.View(); view.Steps[1].Status != model.StepIdle || view.Steps[2].Status != model.StepIdle {
		t.Fatalf("later steps left idle expected: %+v", view.Steps)
	}
	if completed.Load() != 0 {
		t.Fatalf("completion fired after failure")
	}
}

func TestOrchestratorMiddleFailureDoesNotRetryEarlierSteps(t *testing.T) {
	writer := newFakeWriter()
	writer.simErr["approve1"] = errors.New("execution reverted")
	source := newFakeSource(func(int) (uint64, error) { return 1, nil })
	orch, _ := newTestOrchestrator(t, writer, source, fastPoll())

	orch.Open(context.Background(), nil)
	if err := orch.Wait(waitCtx(t)); !errors.Is(err, ErrSimulationFailed) {
		t.Fatalf("expected ErrSimulationFailed, got %v", err)
	}
	subs := writer.submissions()
	if len(subs) != 1 || subs[0] != "approve0" {
		t.Fatalf("unexpected submissions: %v", subs)
	}
	if step := orch.View().Steps[0]; step.Status != model.StepSuccess {
		t.Fatalf("step 0 should stay successful, got %s", step.Status)
	}
}

func TestOrchestratorReopenResetsSteps(t *testing.T) {
	writer := newFakeWriter()
	writer.submitErr["deposit"] = errors.New("gas required exceeds allowance")
	source := newFakeSource(func(int) (uint64, error) { return 1, nil })
	orch, _ := newTestOrchestrator(t, writer, source, fastPoll())

	first := orch.Open(context.Background(), nil)
	if err := orch.Wait(waitCtx(t)); err == nil {
		t.Fatalf("expected first run to fail")
	}

	writer.mu.Lock()
	delete(writer.submitErr, "deposit")
	writer.mu.Unlock()

	second := orch.Open(context.Background(), nil)
	if second == first {
		t.Fatalf("session id reused")
	}
	if err := orch.Wait(waitCtx(t)); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if subs := writer.submissions(); len(subs) != 5 {
		t.Fatalf("expected restart from the first step, got %v", subs)
	}
}

func TestOrchestratorStepErrorEndsSequencer(t *testing.T) {
	writer := newFakeWriter()
	writer.submitErr["approve1"] = errors.New("user rejected the request")
	source := newFakeSource(func(int) (uint64, error) { return 1, nil })
	orch, _ := newTestOrchestrator(t, writer, source, fastPoll())

	orch.Open(context.Background(), nil)
	if err := orch.Wait(waitCtx(t)); !errors.Is(err, ErrSubmissionRejected) {
		t.Fatalf("expected submission error, got %v", err)
	}

	orch.mu.Lock()
	s := orch.cur
	orch.mu.Unlock()
	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatalf("sequencer still running after a step error")
	}
	if subs := writer.submissions(); len(subs) != 1 || subs[0] != "approve0" {
		t.Fatalf("unexpected submissions: %v", subs)
	}
}

func TestOrchestratorCloseStopsPolling(t *testing.T) {
	writer := newFakeWriter()
	source := newFakeSource(func(int) (uint64, error) { return 0, nil })
	orch, _ := newTestOrchestrator(t, writer, source, fastPoll())

	var completed atomic.Int32
	orch.Open(context.Background(), func() { completed.Add(1) })
	waitFor(t, "polling", func() bool { return source.total() >= 2 })

	orch.Close()
	time.Sleep(15 * time.Millisecond)
	polls := source.total()
	time.Sleep(30 * time.Millisecond)

	if source.total() != polls {
		t.Fatalf("polling continued after close: %d -> %d", polls, source.total())
	}
	if err := orch.Wait(waitCtx(t)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if step := orch.View().Steps[0]; step.Status != model.StepWaiting || step.TransactionHash == "" {
		t.Fatalf("snapshot should survive close: %+v", step)
	}
	if completed.Load() != 0 {
		t.Fatalf("completion fired after close")
	}
}

func TestOrchestratorUnknownChain(t *testing.T) {
	_, err := NewOrchestrator(Config{
		ChainID: 1,
		Table:   staticTable{testChain: 1},
		Poll:    fastPoll(),
	}, []Action{&fakeAction{title: "approve0"}}, newFakeWriter(), newFakeSource(nil), zap.NewNop())
	if !errors.Is(err, errNoChain) {
		t.Fatalf("expected unknown chain error, got %v", err)
	}
}

func TestOrchestratorWaitBeforeOpen(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeWriter(), newFakeSource(nil), fastPoll())
	if err := orch.Wait(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if view := orch.View(); view.SessionID != "" || view.Steps[0].Status != model.StepIdle {
		t.Fatalf("unexpected view before open: %+v", view)
	}
}

func TestObserversReceiveSessionID(t *testing.T) {
	source := newFakeSource(func(int) (uint64, error) { return 1, nil })
	orch, rec := newTestOrchestrator(t, newFakeWriter(), source, fastPoll())

	id := orch.Open(context.Background(), nil)
	if err := orch.Wait(waitCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) == 0 {
		t.Fatalf("no events recorded")
	}
	for _, ev := range rec.events {
		if ev.session != id {
			t.Fatalf("event with session %q, want %q", ev.session, id)
		}
	}
}
