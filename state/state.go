package state

import (
	"errors"
	"sync"
)

// Status is one node of a transition machine.
type Status string

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine guards status transitions with an explicit table. A status with no
// outgoing edges is terminal; once reached, every further Transition fails.
type Machine struct {
	current     Status
	transitions map[Status][]Status
	mutex       sync.RWMutex
}

func NewMachine(initial Status, transitions map[Status][]Status) *Machine {
	return &Machine{
		current:     initial,
		transitions: transitions,
	}
}

func (m *Machine) Current() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Transition moves to the target status if the table allows it.
func (m *Machine) Transition(to Status) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, allowed := range m.transitions[m.current] {
		if allowed == to {
			m.current = to
			return nil
		}
	}
	return ErrTransitionNotAllowed
}

// Terminal reports whether the machine can no longer move.
func (m *Machine) Terminal() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.transitions[m.current]) == 0
}
