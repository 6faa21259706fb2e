package engine

import (
	"context"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// Target identifies one database the script runs against
type Target struct {
	Name string
	DSN  string
}

// Job describes one dispatch handed to the engine
type Job struct {
	Script      string
	Targets     []Target
	StopOnError bool // abort a target's remaining statements after its first failure
}

// Notification carries one full per-target snapshot, keyed by target name
type Notification struct {
	Target string
	State  model.TargetState
}

// Engine executes a job's script against every target independently and
// pushes TargetState snapshots on the returned channel, closing it after the
// last target reports a terminal snapshot. The channel is returned before
// any work starts, so a consumer attached right away cannot miss an early
// completion. Targets never abort each other; StopOnError only shortens the
// statement loop of the target that failed.
type Engine interface {
	Execute(ctx context.Context, job Job) (<-chan Notification, error)
}
