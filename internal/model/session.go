package model

// Session is the live collection of TargetState for one run, keyed by target
// name, insertion order = dispatch order. The key set is fixed at creation
// and never grows or shrinks during the run. A Session is not safe for
// concurrent use; the dispatcher serializes access around it.
type Session struct {
	order  []string
	states map[string]TargetState
}

// NewSession creates a session with every target in waiting phase.
// Duplicate names keep their first position.
func NewSession(targets []string) *Session {
	s := &Session{
		states: make(map[string]TargetState, len(targets)),
	}
	for _, name := range targets {
		if _, ok := s.states[name]; ok {
			continue
		}
		s.order = append(s.order, name)
		s.states[name] = NewTargetState(name)
	}
	return s
}

// Apply replaces the named target's state wholesale with the snapshot,
// making duplicate delivery of the same terminal snapshot idempotent.
// It returns false for names outside the session's fixed key set; such
// stale notifications leave the session untouched.
func (s *Session) Apply(name string, state TargetState) bool {
	if _, ok := s.states[name]; !ok {
		return false
	}
	state.Name = name
	s.states[name] = state
	return true
}

// Len returns the number of targets in the session
func (s *Session) Len() int {
	return len(s.order)
}

// Names returns the target names in dispatch order
func (s *Session) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Get returns the current snapshot for one target
func (s *Session) Get(name string) (TargetState, bool) {
	st, ok := s.states[name]
	return st, ok
}

// List returns every target's current snapshot in dispatch order
func (s *Session) List() []TargetState {
	out := make([]TargetState, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.states[name])
	}
	return out
}

// ErrorTargets returns the subset of targets in error phase, in dispatch order
func (s *Session) ErrorTargets() []TargetState {
	var out []TargetState
	for _, name := range s.order {
		if st := s.states[name]; st.Phase == PhaseError {
			out = append(out, st)
		}
	}
	return out
}

// TargetsWithResults returns the subset with recorded statement outcomes,
// in dispatch order
func (s *Session) TargetsWithResults() []TargetState {
	var out []TargetState
	for _, name := range s.order {
		if st := s.states[name]; st.HasResults() {
			out = append(out, st)
		}
	}
	return out
}

// IsComplete reports whether every target has reached a terminal phase.
// It is recomputed from the snapshots on every call, never cached.
func (s *Session) IsComplete() bool {
	for _, st := range s.states {
		if st.Phase == PhaseWaiting {
			return false
		}
	}
	return true
}
