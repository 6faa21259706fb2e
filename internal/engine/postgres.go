package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// DefaultConnectTimeout bounds the initial dial and ping per target
const DefaultConnectTimeout = 10 * time.Second

// Postgres runs jobs against Postgres servers, one worker goroutine per
// target. Targets are fully independent: a broken or slow target never
// delays or aborts the others.
type Postgres struct {
	ConnectTimeout time.Duration
}

var _ Engine = (*Postgres)(nil)

// NewPostgres creates an engine with default timeouts
func NewPostgres() *Postgres {
	return &Postgres{ConnectTimeout: DefaultConnectTimeout}
}

// Execute splits the script once, then fans it out to every target. The
// returned channel closes after the last worker's terminal snapshot.
func (p *Postgres) Execute(ctx context.Context, job Job) (<-chan Notification, error) {
	statements, err := SplitScript(job.Script)
	if err != nil {
		return nil, err
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("script contains no statements")
	}

	ch := make(chan Notification, len(job.Targets))
	var wg sync.WaitGroup
	for _, tgt := range job.Targets {
		wg.Add(1)
		go func(tgt Target) {
			defer wg.Done()
			p.runTarget(ctx, tgt, statements, job.StopOnError, ch)
		}(tgt)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch, nil
}

func (p *Postgres) runTarget(ctx context.Context, tgt Target, statements []string, stopOnError bool, ch chan<- Notification) {
	state := model.NewTargetState(tgt.Name)

	db, err := p.open(ctx, tgt.DSN)
	if err != nil {
		state.Phase = model.PhaseError
		state.Diagnostic = fmt.Sprintf("connect: %v", err)
		send(ctx, ch, Notification{Target: tgt.Name, State: state})
		return
	}
	defer db.Close()

	failed := 0
	for i, stmt := range statements {
		res := runStatement(ctx, db, stmt)
		state.Statements = append(state.Statements, res)
		if res.Kind == model.StatementFailure {
			failed++
			if stopOnError {
				break
			}
		}
		if i < len(statements)-1 {
			// Progressive snapshot so the operator watches statements land
			send(ctx, ch, Notification{Target: tgt.Name, State: cloneState(state)})
		}
	}

	finishState(&state, failed)
	send(ctx, ch, Notification{Target: tgt.Name, State: state})
}

func (p *Postgres) open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, p.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runStatement(ctx context.Context, db *sql.DB, stmt string) model.StatementResult {
	if returnsRows(stmt) {
		rows, err := db.QueryContext(ctx, stmt)
		if err != nil {
			return model.NewFailure(err.Error())
		}
		defer rows.Close()
		res, err := readRows(rows)
		if err != nil {
			return model.NewFailure(err.Error())
		}
		return res
	}

	tag, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return model.NewFailure(err.Error())
	}
	affected, err := tag.RowsAffected()
	if err != nil {
		affected = 0
	}
	return model.NewMutation(affected)
}

// finishState sets the terminal phase from the per-statement outcomes
func finishState(state *model.TargetState, failed int) {
	if failed > 0 {
		state.Phase = model.PhaseError
		state.Diagnostic = fmt.Sprintf("%d succeeded, %d failed", len(state.Statements)-failed, failed)
		return
	}
	state.Phase = model.PhaseSuccess
}

// cloneState detaches the snapshot from the worker's statement slice so a
// later append never mutates a snapshot already handed to the consumer
func cloneState(state model.TargetState) model.TargetState {
	state.Statements = append([]model.StatementResult(nil), state.Statements...)
	return state
}

// send delivers a snapshot, giving up only when the job context dies
func send(ctx context.Context, ch chan<- Notification, n Notification) {
	select {
	case ch <- n:
	case <-ctx.Done():
	}
}
