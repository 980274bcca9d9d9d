package workflow

import (
	"context"
	"fmt"
)

// StateMachineBuilder collects the edge table for a state machine
type StateMachineBuilder interface {
	// Configure returns the edge set leaving state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration declares the edges leaving one state
type StateConfiguration interface {
	// Permit adds the edge trigger -> toState. Each trigger has at most one edge per state.
	Permit(trigger Trigger, toState State) StateConfiguration
}

type edges map[Trigger]State

type stateMachineBuilder struct {
	table map[State]edges
}

type stateMachine struct {
	current State
	table   map[State]edges
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{table: make(map[State]edges)}
}

// Configure panics for unknown or terminal states; both are programming errors
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if state.IsTerminal() {
		panic(fmt.Sprintf("terminal state cannot have transitions: %s", state))
	}

	e, ok := b.table[state]
	if !ok {
		e = make(edges)
		b.table[state] = e
	}
	return e
}

// Build copies the table so machines never share edges with the builder or each other
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	table := make(map[State]edges, len(b.table))
	for from, e := range b.table {
		table[from] = make(edges, len(e))
		for trigger, to := range e {
			table[from][trigger] = to
		}
	}
	return &stateMachine{current: initialState, table: table}
}

func (e edges) Permit(trigger Trigger, toState State) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if existing, dup := e[trigger]; dup {
		panic(fmt.Sprintf("trigger %s already leads to %s", trigger, existing))
	}
	e[trigger] = toState
	return e
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.table[m.current][trigger]
	return ok
}

func (m *stateMachine) Fire(_ context.Context, trigger Trigger) error {
	to, ok := m.table[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}
