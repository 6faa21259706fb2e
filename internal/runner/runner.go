package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/WarPigBRZ/BelugaDB/internal/engine"
	"github.com/WarPigBRZ/BelugaDB/internal/export"
	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// ValidationError rejects a dispatch before any engine or store call
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// HistoryRecorder is the append-only history collaborator. Recording is
// best-effort; a failure is logged and never fails the dispatch.
type HistoryRecorder interface {
	AddHistory(entry model.HistoryEntry) error
}

// Request describes one dispatch
type Request struct {
	Script      string
	Targets     []engine.Target
	StopOnError bool
	Persist     export.Mode
	OutDir      string
	Origin      string // connection name, recorded with the history entry
}

// Dispatcher starts runs against an engine. The zero value is unusable;
// Engine must be set. History and Logger are optional.
type Dispatcher struct {
	Engine  engine.Engine
	History HistoryRecorder
	Logger  *log.Logger
}

// Dispatch validates the request, creates a fresh session with every target
// waiting, starts the engine, and attaches the notification subscriber, all
// before returning. The engine does its work in the background; progress is
// observed through the returned handle.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Handle, error) {
	if strings.TrimSpace(req.Script) == "" {
		return nil, &ValidationError{Reason: "script is empty"}
	}
	if len(req.Targets) == 0 {
		return nil, &ValidationError{Reason: "no targets selected"}
	}

	names := make([]string, len(req.Targets))
	for i, t := range req.Targets {
		names[i] = t.Name
	}
	session := model.NewSession(names)

	notifications, err := d.Engine.Execute(ctx, engine.Job{
		Script:      req.Script,
		Targets:     req.Targets,
		StopOnError: req.StopOnError,
	})
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	h := &Handle{
		session:  session,
		targets:  session.Names(),
		updates:  make(chan Update, len(req.Targets)),
		done:     make(chan struct{}),
		history:  d.recordHistory(req),
		detachCh: make(chan struct{}),
		persist:  req.Persist,
		outDir:   req.OutDir,
		logger:   d.logger(),
	}
	go h.subscribe(notifications)
	return h, nil
}

// recordHistory fires the history write without waiting for it. The returned
// channel closes when the write is done.
func (d *Dispatcher) recordHistory(req Request) <-chan struct{} {
	done := make(chan struct{})
	if d.History == nil {
		close(done)
		return done
	}
	entry := model.HistoryEntry{
		Script:    req.Script,
		Origin:    req.Origin,
		CreatedAt: time.Now().UTC(),
	}
	logger := d.logger()
	go func() {
		defer close(done)
		if err := d.History.AddHistory(entry); err != nil {
			logger.Printf("history: record failed: %v", err)
		}
	}()
	return done
}

func (d *Dispatcher) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}
