package update

import "time"

// Phase is the last swap step that completed.
type Phase string

const (
	// PhaseMarked means the record was written and nothing was renamed yet.
	PhaseMarked Phase = "marked"
	// PhaseBackedUp means the live binary was renamed to the backup path.
	PhaseBackedUp Phase = "backed-up"
	// PhaseInstalled means the new binary sits at the canonical path.
	PhaseInstalled Phase = "installed"
	// PhaseHandedOff means a helper process was started to finish the swap.
	PhaseHandedOff Phase = "handed-off"
)

// State is the swap record persisted next to the executable.
type State struct {
	// Phase is the last completed step.
	Phase Phase `yaml:"phase"`
	// StartedAt is when the swap began.
	StartedAt time.Time `yaml:"started_at"`
	// FromVersion is the version that was running when the swap began.
	FromVersion string `yaml:"from_version,omitempty"`
	// ToVersion is the release tag being installed.
	ToVersion string `yaml:"to_version,omitempty"`
	// PID is the process that wrote the record.
	PID int `yaml:"pid,omitempty"`
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Advance returns a copy moved to the given phase.
func (s *State) Advance(p Phase) *State {
	next := s.Clone()
	if next == nil {
		next = new(State)
	}

	next.Phase = p

	return next
}

// IsCritical reports whether the canonical path may be missing its binary.
func (s *State) IsCritical() bool {
	return s != nil && s.Phase == PhaseBackedUp
}
