package brain

import (
	"sync"
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
)

// stateMachine guards RefreshState. Every transition and every read takes the
// same lock, and nothing holds it across network I/O.
type stateMachine struct {
	mu        sync.Mutex
	state     contracts.RefreshState
	observers []func(contracts.RefreshState)
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		state: contracts.RefreshState{Phase: contracts.PhaseIdle},
	}
}

// snapshot returns a copy safe to hand out
func (m *stateMachine) snapshot() contracts.RefreshState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

func (m *stateMachine) subscribe(fn func(contracts.RefreshState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// tryBegin is the check-and-set. check runs under the lock and may veto the
// start with a status; it must not do network I/O.
func (m *stateMachine) tryBegin(now time.Time, message string, check func() (contracts.StartStatus, bool)) (contracts.StartStatus, bool) {
	m.mu.Lock()
	if m.state.Running {
		m.mu.Unlock()
		return contracts.StatusAlreadyRunning, false
	}
	if check != nil {
		if status, ok := check(); !ok {
			m.mu.Unlock()
			return status, false
		}
	}

	started := now
	m.state = contracts.RefreshState{
		Running:   true,
		Phase:     contracts.PhaseResolvingUniverse,
		Message:   message,
		StartedAt: &started,
	}
	state, observers := copyState(m.state), m.observers
	m.mu.Unlock()

	notify(observers, state)
	return contracts.StatusStarted, true
}

func (m *stateMachine) update(fn func(s *contracts.RefreshState)) {
	m.mu.Lock()
	fn(&m.state)
	state, observers := copyState(m.state), m.observers
	m.mu.Unlock()

	notify(observers, state)
}

func (m *stateMachine) setPhase(phase contracts.Phase, message string) {
	m.update(func(s *contracts.RefreshState) {
		s.Phase = phase
		s.Message = message
	})
}

func (m *stateMachine) setProgress(phase contracts.Phase, current, total int) {
	m.update(func(s *contracts.RefreshState) {
		s.Phase = phase
		s.Progress = contracts.Progress{Current: current, Total: total}
	})
}

// finish always clears the running flag
func (m *stateMachine) finish(now time.Time, err error, message string) {
	m.update(func(s *contracts.RefreshState) {
		finished := now
		s.Running = false
		s.FinishedAt = &finished
		if err != nil {
			s.Phase = contracts.PhaseFailed
			s.Message = err.Error()
			return
		}
		s.Phase = contracts.PhaseDone
		s.Message = message
	})
}

func notify(observers []func(contracts.RefreshState), state contracts.RefreshState) {
	for _, fn := range observers {
		fn(state)
	}
}

func copyState(s contracts.RefreshState) contracts.RefreshState {
	out := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
