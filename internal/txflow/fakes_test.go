package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/model"
)

type fakeAction struct {
	title string
	err   error
}

func (a *fakeAction) Title() string          { return a.title }
func (a *fakeAction) FailureMessage() string { return "Failed to " + a.title }

func (a *fakeAction) Prepare(context.Context) (contracts.Call, error) {
	if a.err != nil {
		return contracts.Call{}, a.err
	}
	return contracts.Call{Method: a.title}, nil
}

type fakeWriter struct {
	mu        sync.Mutex
	simErr    map[string]error
	submitErr map[string]error
	submitted []string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{simErr: map[string]error{}, submitErr: map[string]error{}}
}

func (w *fakeWriter) Simulate(_ context.Context, call contracts.Call) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.simErr[call.Method]
}

func (w *fakeWriter) Submit(_ context.Context, call contracts.Call) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.submitErr[call.Method]; err != nil {
		return common.Hash{}, err
	}
	w.submitted = append(w.submitted, call.Method)
	return crypto.Keccak256Hash([]byte(call.Method)), nil
}

func (w *fakeWriter) submissions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.submitted...)
}

// fakeSource answers confirmation queries through respond, called with the
// 1-based attempt number for that hash.
type fakeSource struct {
	mu       sync.Mutex
	attempts map[common.Hash]int
	respond  func(attempt int) (uint64, error)
}

func newFakeSource(respond func(attempt int) (uint64, error)) *fakeSource {
	return &fakeSource{attempts: map[common.Hash]int{}, respond: respond}
}

func (s *fakeSource) TransactionConfirmations(_ context.Context, hash common.Hash) (uint64, error) {
	s.mu.Lock()
	s.attempts[hash]++
	attempt := s.attempts[hash]
	s.mu.Unlock()
	return s.respond(attempt)
}

func (s *fakeSource) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.attempts {
		total += n
	}
	return total
}

type staticTable map[uint64]uint64

var errNoChain = errors.New("unknown chain")

func (t staticTable) RequiredConfirmations(chainID uint64) (uint64, error) {
	required, ok := t[chainID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", errNoChain, chainID)
	}
	return required, nil
}

type event struct {
	session string
	step    model.TransactionStep
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) observe(session string, step model.TransactionStep) {
	r.mu.Lock()
	r.events = append(r.events, event{session: session, step: step})
	r.mu.Unlock()
}

func (r *recorder) engineHook(step model.TransactionStep) {
	r.observe("", step)
}

// statuses lists the statuses recorded for one step, skipping repeats.
func (r *recorder) statuses(index int) []model.StepStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StepStatus
	for _, ev := range r.events {
		if ev.step.Index != index {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == ev.step.Status {
			continue
		}
		out = append(out, ev.step.Status)
	}
	return out
}

// position returns the index of the first event for step with status.
func (r *recorder) position(index int, status model.StepStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ev := range r.events {
		if ev.step.Index == index && ev.step.Status == status {
			return i
		}
	}
	return -1
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func fastPoll() PollConfig {
	return PollConfig{Interval: 5 * time.Millisecond, Retries: 2}
}

func equalStatuses(got []model.StepStatus, want ...model.StepStatus) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
