package runner

import (
	"log"
	"strings"
	"sync"

	"github.com/WarPigBRZ/BelugaDB/internal/engine"
	"github.com/WarPigBRZ/BelugaDB/internal/export"
	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// Update is delivered to the consumer after every applied notification
type Update struct {
	Target   string
	State    model.TargetState
	Complete bool // completion predicate right after this application
}

// Handle observes one dispatched run. Updates carries applied snapshots in
// arrival order; Done closes once the engine's notification stream ends.
type Handle struct {
	session *model.Session
	targets []string
	updates chan Update
	done    chan struct{}
	history <-chan struct{}

	mu         sync.Mutex
	detached   bool
	detachOnce sync.Once
	detachCh   chan struct{}

	persist  export.Mode
	outDir   string
	exported bool
	logger   *log.Logger
}

// Updates streams applied snapshots; the channel closes when the run ends
// or after Detach.
func (h *Handle) Updates() <-chan Update {
	return h.updates
}

// Done closes once the subscriber has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// HistoryRecorded closes once the background history write has finished,
// whether it succeeded or not. Short-lived processes wait on it before
// exiting so the entry is not lost; the run itself never does.
func (h *Handle) HistoryRecorded() <-chan struct{} {
	return h.history
}

// Targets returns the target names in dispatch order. The slice is fixed at
// dispatch time and safe to read while the run is in flight.
func (h *Handle) Targets() []string {
	out := make([]string, len(h.targets))
	copy(out, h.targets)
	return out
}

// Session returns the run's session. Safe once Done is closed or after
// Detach has returned; until then the subscriber owns it.
func (h *Handle) Session() *model.Session {
	return h.session
}

// Detach stops applying notifications without canceling the engine's
// in-flight work. Targets still running keep running; their late
// notifications are drained and dropped.
func (h *Handle) Detach() {
	h.mu.Lock()
	h.detached = true
	h.mu.Unlock()
	h.detachOnce.Do(func() { close(h.detachCh) })
}

// subscribe is the event channel subscriber: one goroutine routing engine
// notifications into the session until the stream closes.
func (h *Handle) subscribe(notifications <-chan engine.Notification) {
	defer close(h.done)
	defer close(h.updates)

	for n := range notifications {
		h.mu.Lock()
		if h.detached {
			h.mu.Unlock()
			continue
		}
		applied := h.session.Apply(n.Target, n.State)
		var state model.TargetState
		var complete bool
		if applied {
			state, _ = h.session.Get(n.Target)
			complete = h.session.IsComplete()
		}
		h.mu.Unlock()

		if !applied {
			h.logger.Printf("run: stale notification for %q discarded", n.Target)
			continue
		}
		h.push(Update{Target: n.Target, State: state, Complete: complete})
		if complete {
			h.export()
		}
	}
}

// push hands an update to the consumer, giving up if the run is detached
func (h *Handle) push(u Update) {
	select {
	case h.updates <- u:
	case <-h.detachCh:
	}
}

// export writes the run's results once, at completion
func (h *Handle) export() {
	if h.persist == export.ModeNone || h.exported {
		return
	}
	h.exported = true
	paths, err := export.Write(h.outDir, h.persist, h.session)
	if err != nil {
		h.logger.Printf("run: result export failed: %v", err)
		return
	}
	if len(paths) > 0 {
		h.logger.Printf("run: results saved: %s", strings.Join(paths, ", "))
	}
}
