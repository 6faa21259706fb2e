package runner

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/WarPigBRZ/BelugaDB/internal/engine"
	"github.com/WarPigBRZ/BelugaDB/internal/export"
	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// stubEngine replays a scripted notification sequence. When gate is set,
// notifications from index gateAfter on are held until the gate closes.
type stubEngine struct {
	notifications []engine.Notification
	err           error
	called        bool
	gate          chan struct{}
	gateAfter     int
}

func (s *stubEngine) Execute(ctx context.Context, job engine.Job) (<-chan engine.Notification, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan engine.Notification)
	go func() {
		defer close(ch)
		for i, n := range s.notifications {
			if s.gate != nil && i == s.gateAfter {
				<-s.gate
			}
			select {
			case ch <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func quietDispatcher(e engine.Engine) *Dispatcher {
	return &Dispatcher{Engine: e, Logger: log.New(io.Discard, "", 0)}
}

func targets(names ...string) []engine.Target {
	out := make([]engine.Target, len(names))
	for i, n := range names {
		out[i] = engine.Target{Name: n}
	}
	return out
}

func TestDispatchValidation(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		targets []engine.Target
	}{
		{"empty script", "", targets("db1")},
		{"whitespace script", " \n\t ", targets("db1")},
		{"no targets", "SELECT 1", nil},
		{"no targets and no script", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &stubEngine{}
			d := quietDispatcher(eng)

			_, err := d.Dispatch(context.Background(), Request{Script: tt.script, Targets: tt.targets})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Dispatch() error = %v, want ValidationError", err)
			}
			if eng.called {
				t.Error("engine was called despite failed validation")
			}
		})
	}
}

func TestDispatchEngineError(t *testing.T) {
	d := quietDispatcher(&stubEngine{err: errors.New("split script: bad input")})
	_, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1")})
	if err == nil {
		t.Fatal("Dispatch() succeeded with a failing engine")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("engine failure misreported as validation error")
	}
}

func TestDispatchAllWaiting(t *testing.T) {
	d := quietDispatcher(&stubEngine{})
	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1", "db2", "db3")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	<-h.Done()

	s := h.Session()
	if got := s.Names(); !reflect.DeepEqual(got, []string{"db1", "db2", "db3"}) {
		t.Errorf("Names() = %v, want dispatch order", got)
	}
	for _, st := range s.List() {
		if st.Phase != model.PhaseWaiting {
			t.Errorf("target %s phase = %v, want waiting", st.Name, st.Phase)
		}
	}
	if s.IsComplete() {
		t.Error("IsComplete() = true with no notifications applied")
	}
}

// The out-of-order scenario: db3 finishes first with rows, db1 errors,
// db2 finishes with a zero-row mutation.
func TestDispatchOutOfOrderRun(t *testing.T) {
	eng := &stubEngine{notifications: []engine.Notification{
		{Target: "db3", State: model.TargetState{
			Phase:      model.PhaseSuccess,
			Statements: []model.StatementResult{model.NewTabular([]string{"?column?"}, [][]string{{"1"}})},
		}},
		{Target: "db1", State: model.TargetState{
			Phase:      model.PhaseError,
			Diagnostic: "timeout",
		}},
		{Target: "db2", State: model.TargetState{
			Phase:      model.PhaseSuccess,
			Statements: []model.StatementResult{model.NewMutation(0)},
		}},
	}}
	d := quietDispatcher(eng)

	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1", "db2", "db3")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	var order []string
	var lastComplete bool
	for u := range h.Updates() {
		order = append(order, u.Target)
		lastComplete = u.Complete
	}
	<-h.Done()

	if !reflect.DeepEqual(order, []string{"db3", "db1", "db2"}) {
		t.Errorf("update order = %v, want arrival order", order)
	}
	if !lastComplete {
		t.Error("final update did not report completion")
	}

	s := h.Session()
	if !s.IsComplete() {
		t.Error("IsComplete() = false after all targets finished")
	}
	errs := s.ErrorTargets()
	if len(errs) != 1 || errs[0].Name != "db1" {
		t.Errorf("ErrorTargets() = %v, want [db1]", errs)
	}
	if got := model.Resolve(s, model.ErrorsOnly, nil); !reflect.DeepEqual(got, model.SelectionSet{"db1"}) {
		t.Errorf("Resolve(ErrorsOnly) = %v, want [db1]", got)
	}
}

func TestStaleNotificationDiscarded(t *testing.T) {
	eng := &stubEngine{notifications: []engine.Notification{
		{Target: "db9", State: model.TargetState{Phase: model.PhaseSuccess}},
		{Target: "db1", State: model.TargetState{Phase: model.PhaseSuccess}},
	}}
	d := quietDispatcher(eng)

	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	var got []string
	for u := range h.Updates() {
		got = append(got, u.Target)
	}
	<-h.Done()

	if !reflect.DeepEqual(got, []string{"db1"}) {
		t.Errorf("updates = %v, want only db1 (db9 is stale)", got)
	}
	if _, ok := h.Session().Get("db9"); ok {
		t.Error("stale target entered the session")
	}
}

func TestDuplicateTerminalIdempotent(t *testing.T) {
	snap := model.TargetState{
		Phase:      model.PhaseError,
		Diagnostic: "timeout",
		Statements: []model.StatementResult{model.NewFailure("timeout")},
	}
	eng := &stubEngine{notifications: []engine.Notification{
		{Target: "db1", State: snap},
		{Target: "db1", State: snap},
	}}
	d := quietDispatcher(eng)

	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	count := 0
	for range h.Updates() {
		count++
	}
	<-h.Done()

	if count != 2 {
		t.Errorf("updates = %d, want both duplicates applied", count)
	}
	st, _ := h.Session().Get("db1")
	if st.Phase != model.PhaseError || st.Diagnostic != "timeout" || len(st.Statements) != 1 {
		t.Errorf("state after duplicates = %+v", st)
	}
}

func TestDetachDropsLateNotifications(t *testing.T) {
	gate := make(chan struct{})
	eng := &stubEngine{
		notifications: []engine.Notification{
			{Target: "db1", State: model.TargetState{Phase: model.PhaseSuccess}},
			{Target: "db2", State: model.TargetState{Phase: model.PhaseSuccess}},
			{Target: "db3", State: model.TargetState{Phase: model.PhaseError, Diagnostic: "late"}},
		},
		gate:      gate,
		gateAfter: 1,
	}
	d := quietDispatcher(eng)

	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1", "db2", "db3")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	first := <-h.Updates()
	if first.Target != "db1" {
		t.Fatalf("first update = %v, want db1", first.Target)
	}

	h.Detach()
	close(gate)
	<-h.Done()

	extra := 0
	for range h.Updates() {
		extra++
	}
	if extra != 0 {
		t.Errorf("received %d updates after detach", extra)
	}

	s := h.Session()
	if st, _ := s.Get("db2"); st.Phase != model.PhaseWaiting {
		t.Errorf("db2 phase = %v, want waiting (notification dropped)", st.Phase)
	}
	if st, _ := s.Get("db3"); st.Phase != model.PhaseWaiting {
		t.Errorf("db3 phase = %v, want waiting (notification dropped)", st.Phase)
	}
	if s.IsComplete() {
		t.Error("detached session reported complete")
	}
}

func TestHistoryRecorded(t *testing.T) {
	recorded := make(chan model.HistoryEntry, 1)
	d := quietDispatcher(&stubEngine{})
	d.History = historyFunc(func(e model.HistoryEntry) error {
		recorded <- e
		return nil
	})

	h, err := d.Dispatch(context.Background(), Request{
		Script:  "SELECT 1",
		Targets: targets("db1"),
		Origin:  "staging",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	<-h.Done()

	select {
	case e := <-recorded:
		if e.Script != "SELECT 1" || e.Origin != "staging" {
			t.Errorf("recorded entry = %+v", e)
		}
		if e.CreatedAt.IsZero() {
			t.Error("recorded entry has zero timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("history entry never recorded")
	}
}

func TestHistoryFailureDoesNotFailDispatch(t *testing.T) {
	attempted := make(chan struct{}, 1)
	d := quietDispatcher(&stubEngine{notifications: []engine.Notification{
		{Target: "db1", State: model.TargetState{Phase: model.PhaseSuccess}},
	}})
	d.History = historyFunc(func(model.HistoryEntry) error {
		attempted <- struct{}{}
		return errors.New("disk full")
	})

	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v, history failures must not fail dispatch", err)
	}
	<-h.Done()

	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("history recorder never invoked")
	}
	if !h.Session().IsComplete() {
		t.Error("run did not complete")
	}
}

func TestHistoryRecordedCloses(t *testing.T) {
	d := quietDispatcher(&stubEngine{})
	d.History = historyFunc(func(model.HistoryEntry) error { return nil })

	h, err := d.Dispatch(context.Background(), Request{Script: "SELECT 1", Targets: targets("db1")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	select {
	case <-h.HistoryRecorded():
	case <-time.After(2 * time.Second):
		t.Fatal("HistoryRecorded never closed")
	}

	// Without a recorder the channel is closed up front.
	h2, err := quietDispatcher(&stubEngine{}).Dispatch(context.Background(),
		Request{Script: "SELECT 1", Targets: targets("db1")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	select {
	case <-h2.HistoryRecorded():
	default:
		t.Fatal("HistoryRecorded open with no recorder configured")
	}
}

func TestExportOnCompletion(t *testing.T) {
	dir := t.TempDir()
	eng := &stubEngine{notifications: []engine.Notification{
		{Target: "db1", State: model.TargetState{
			Phase:      model.PhaseSuccess,
			Statements: []model.StatementResult{model.NewTabular([]string{"n"}, [][]string{{"1"}})},
		}},
	}}
	d := quietDispatcher(eng)

	h, err := d.Dispatch(context.Background(), Request{
		Script:  "SELECT 1",
		Targets: targets("db1"),
		Persist: export.ModeSeparate,
		OutDir:  dir,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	for range h.Updates() {
	}
	<-h.Done()

	got, err := os.ReadFile(filepath.Join(dir, "db1.csv"))
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	if string(got) != "n\n1\n" {
		t.Errorf("db1.csv = %q", got)
	}
}

// historyFunc adapts a function to the HistoryRecorder interface
type historyFunc func(model.HistoryEntry) error

func (f historyFunc) AddHistory(e model.HistoryEntry) error {
	return f(e)
}
