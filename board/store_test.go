package board

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"prism-board/domain"
)

type fakePersister struct {
	mu      sync.Mutex
	initial *domain.Board
	saved   []domain.Board
	saveErr error
}

func (f *fakePersister) Load(ctx context.Context) domain.Board {
	if f.initial != nil {
		return f.initial.Clone()
	}
	return domain.DefaultBoard()
}

func (f *fakePersister) Save(ctx context.Context, b domain.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, b.Clone())
	return f.saveErr
}

func (f *fakePersister) Saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakePersister) Last() domain.Board {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[len(f.saved)-1]
}

type sequenceIDs struct {
	ids []string
	i   int
}

func (s *sequenceIDs) NewID() string {
	id := s.ids[s.i%len(s.ids)]
	s.i++
	return id
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakePersister) {
	t.Helper()
	p := &fakePersister{}
	logger, _ := test.NewNullLogger()
	return NewStore(context.Background(), p, logger, opts...), p
}

func taskIDs(b domain.Board, col domain.ColumnID) []string {
	ids := make([]string, 0, len(b.Columns[col].Tasks))
	for _, t := range b.Columns[col].Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func assertInvariant(t *testing.T, b domain.Board) {
	t.Helper()
	if err := b.Validate(); err != nil {
		t.Fatalf("board invariant broken: %v", err)
	}
}

func TestCreateTaskAppendsIncompleteTask(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.ColumnTodo, "Write tests", "", " medium")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Completed {
		t.Fatal("new task should not be completed")
	}
	if task.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected priority %q", task.Priority)
	}
	b := s.Board()
	ids := taskIDs(b, domain.ColumnTodo)
	if len(ids) != 3 || ids[2] != task.ID {
		t.Fatalf("expected new task appended last, got %v", ids)
	}
	if p.Saves() != 1 {
		t.Fatalf("expected one save, got %d", p.Saves())
	}
	if !reflect.DeepEqual(p.Last(), b) {
		t.Fatal("persisted board differs from in-memory board")
	}
	if s.Revision() != 1 {
		t.Fatalf("expected revision 1, got %d", s.Revision())
	}
}

func TestCreateTaskRejectsBlankTitle(t *testing.T) {
	s, p := newTestStore(t)
	before := s.Board()

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := s.CreateTask(context.Background(), domain.ColumnTodo, title, "desc", domain.PriorityHigh)
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error for %q, got %v", title, err)
		}
	}
	if !reflect.DeepEqual(before, s.Board()) {
		t.Fatal("board mutated by rejected create")
	}
	if p.Saves() != 0 || s.Revision() != 0 {
		t.Fatalf("rejected create should not persist, saves=%d revision=%d", p.Saves(), s.Revision())
	}
}

func TestCreateTaskRejectsUnknownColumnAndPriority(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	var vErr *domain.ValidationError

	if _, err := s.CreateTask(ctx, "backlog", "title", "", ""); !errors.As(err, &vErr) || vErr.Field != "column" {
		t.Fatalf("expected column validation error, got %v", err)
	}
	if _, err := s.CreateTask(ctx, domain.ColumnTodo, "title", "", "urgent"); !errors.As(err, &vErr) || vErr.Field != "priority" {
		t.Fatalf("expected priority validation error, got %v", err)
	}
}

func TestCreateTaskSkipsCollidingIDs(t *testing.T) {
	s, _ := newTestStore(t, WithIDGenerator(&sequenceIDs{ids: []string{"1", "4", "", "a"}}))

	task, err := s.CreateTask(context.Background(), domain.ColumnDone, "fresh", "", "low")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID != "a" {
		t.Fatalf("expected colliding ids to be skipped, got %q", task.ID)
	}
}

func TestCreateTaskFailsWhenGeneratorOnlyCollides(t *testing.T) {
	s, p := newTestStore(t, WithIDGenerator(&sequenceIDs{ids: []string{"1"}}))
	if _, err := s.CreateTask(context.Background(), domain.ColumnTodo, "title", "", ""); err == nil {
		t.Fatal("expected error when every generated id collides")
	}
	if p.Saves() != 0 {
		t.Fatal("failed create should not persist")
	}
}

func TestUpdateTaskOverwritesProvidedFields(t *testing.T) {
	s, _ := newTestStore(t)
	title := "Setup Go Project"
	low := domain.PriorityLow

	task, err := s.UpdateTask(context.Background(), "1", TaskFields{Title: &title, Priority: &low})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	want := domain.Task{ID: "1", Title: title, Description: "Initialize project with create-react-app", Priority: domain.PriorityLow}
	if task != want {
		t.Fatalf("unexpected task %#v", task)
	}
	col, idx, ok := s.Board().Locate("1")
	if !ok || col != domain.ColumnTodo || idx != 0 {
		t.Fatalf("update moved the task: %s %d %v", col, idx, ok)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	s, p := newTestStore(t)
	title := "x"
	_, err := s.UpdateTask(context.Background(), "missing", TaskFields{Title: &title})
	var nfErr *domain.NotFoundError
	if !errors.As(err, &nfErr) || nfErr.ID != "missing" {
		t.Fatalf("expected not found error, got %v", err)
	}
	if p.Saves() != 0 {
		t.Fatal("not found update should not persist")
	}
}

func TestUpdateTaskBlankTitleAppliesNothing(t *testing.T) {
	s, p := newTestStore(t)
	before := s.Board()
	blank := "  "
	desc := "new description"

	_, err := s.UpdateTask(context.Background(), "2", TaskFields{Title: &blank, Description: &desc})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Board()) || p.Saves() != 0 {
		t.Fatal("rejected update was partially applied")
	}
}

func TestUpdateTaskWithoutChangesDoesNotPersist(t *testing.T) {
	s, p := newTestStore(t)
	same := "Design Kanban UI"
	if _, err := s.UpdateTask(context.Background(), "2", TaskFields{Title: &same}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if p.Saves() != 0 {
		t.Fatalf("expected no save for identical update, got %d", p.Saves())
	}
}

func TestDeleteTaskIsIdempotent(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	if !s.DeleteTask(ctx, domain.ColumnTodo, "1") {
		t.Fatal("expected first delete to remove the task")
	}
	if s.DeleteTask(ctx, domain.ColumnTodo, "1") {
		t.Fatal("second delete should be a no-op")
	}
	if s.DeleteTask(ctx, domain.ColumnTodo, "3") {
		t.Fatal("delete from the wrong column should be a no-op")
	}
	if s.DeleteTask(ctx, "backlog", "3") {
		t.Fatal("delete from an unknown column should be a no-op")
	}
	if p.Saves() != 1 {
		t.Fatalf("expected exactly one save, got %d", p.Saves())
	}
	if s.Board().Has("1") {
		t.Fatal("task 1 still present")
	}
}

func TestMoveTaskSameColumnIsNoop(t *testing.T) {
	s, p := newTestStore(t)
	before := s.Board()
	if s.MoveTask(context.Background(), "1", domain.ColumnTodo, domain.ColumnTodo) {
		t.Fatal("same-column move reported a change")
	}
	if !reflect.DeepEqual(before, s.Board()) || p.Saves() != 0 {
		t.Fatal("same-column move changed the board")
	}
}

func TestMoveTaskStaleSourceDoesNotDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	before := s.Board()

	if s.MoveTask(ctx, "3", domain.ColumnTodo, domain.ColumnDone) {
		t.Fatal("move from a column not holding the task should be a no-op")
	}
	if s.MoveTask(ctx, "missing", domain.ColumnTodo, domain.ColumnDone) {
		t.Fatal("move of an unknown task should be a no-op")
	}
	if s.MoveTask(ctx, "1", domain.ColumnTodo, "archive") {
		t.Fatal("move to an unknown column should be a no-op")
	}
	if !reflect.DeepEqual(before, s.Board()) {
		t.Fatal("stale move mutated the board")
	}
}

func TestMoveTaskTransfersToEndOfTarget(t *testing.T) {
	s, _ := newTestStore(t)
	if !s.MoveTask(context.Background(), "1", domain.ColumnTodo, domain.ColumnInProgress) {
		t.Fatal("expected move to apply")
	}
	b := s.Board()
	if got := taskIDs(b, domain.ColumnTodo); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("unexpected todo tasks %v", got)
	}
	if got := taskIDs(b, domain.ColumnInProgress); !reflect.DeepEqual(got, []string{"3", "1"}) {
		t.Fatalf("unexpected in-progress tasks %v", got)
	}
	assertInvariant(t, b)
}

func TestToggleCompleteRelocates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.ToggleComplete(ctx, domain.ColumnInProgress, "3")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !task.Completed {
		t.Fatal("expected task to be completed")
	}
	if col, _, _ := s.Board().Locate("3"); col != domain.ColumnDone {
		t.Fatalf("completed task should be in done, got %s", col)
	}

	task, err = s.ToggleComplete(ctx, domain.ColumnDone, "3")
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if task.Completed {
		t.Fatal("expected task to be reopened")
	}
	b := s.Board()
	if col, _, _ := b.Locate("3"); col != domain.ColumnTodo {
		t.Fatalf("reopened task should be in todo, got %s", col)
	}
	if got := taskIDs(b, domain.ColumnInProgress); len(got) != 0 {
		t.Fatalf("in-progress should be empty after round trip, got %v", got)
	}
	assertInvariant(t, b)
}

func TestToggleCompleteFromTodoGoesToDone(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.ToggleComplete(context.Background(), domain.ColumnTodo, "2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	b := s.Board()
	if got := taskIDs(b, domain.ColumnDone); !reflect.DeepEqual(got, []string{"4", "2"}) {
		t.Fatalf("unexpected done tasks %v", got)
	}
}

func TestToggleCompleteWrongColumn(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	var nfErr *domain.NotFoundError

	if _, err := s.ToggleComplete(ctx, domain.ColumnDone, "1"); !errors.As(err, &nfErr) || nfErr.Kind != "task" {
		t.Fatalf("expected task not found, got %v", err)
	}
	if _, err := s.ToggleComplete(ctx, "backlog", "1"); !errors.As(err, &nfErr) || nfErr.Kind != "column" {
		t.Fatalf("expected column not found, got %v", err)
	}
	if p.Saves() != 0 {
		t.Fatal("failed toggle should not persist")
	}
}

func TestClearAllTasksKeepsColumns(t *testing.T) {
	s, p := newTestStore(t)
	s.ClearAllTasks(context.Background())
	b := s.Board()
	if !reflect.DeepEqual(b, domain.EmptyBoard()) {
		t.Fatalf("expected empty board, got %#v", b)
	}
	if !reflect.DeepEqual(p.Last(), domain.EmptyBoard()) {
		t.Fatal("cleared board not persisted")
	}
}

func TestResetBoardRestoresDefault(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateTask(ctx, domain.ColumnTodo, "extra", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.ClearAllTasks(ctx)
	s.ResetBoard(ctx)
	if !reflect.DeepEqual(s.Board(), domain.DefaultBoard()) {
		t.Fatal("reset board differs from default")
	}
	if !reflect.DeepEqual(p.Last(), domain.DefaultBoard()) {
		t.Fatal("reset board not persisted")
	}
}

func TestExampleScenario(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, domain.ColumnTodo, "Write tests", "", " medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n := len(s.Board().Columns[domain.ColumnTodo].Tasks); n != 3 {
		t.Fatalf("expected 3 todo tasks, got %d", n)
	}

	if !s.MoveTask(ctx, task.ID, domain.ColumnTodo, domain.ColumnInProgress) {
		t.Fatal("move did not apply")
	}
	b := s.Board()
	if got := taskIDs(b, domain.ColumnTodo); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Fatalf("unexpected todo order %v", got)
	}
	if got := taskIDs(b, domain.ColumnInProgress); !reflect.DeepEqual(got, []string{"3", task.ID}) {
		t.Fatalf("unexpected in-progress order %v", got)
	}

	toggled, err := s.ToggleComplete(ctx, domain.ColumnInProgress, task.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Completed {
		t.Fatal("expected completed task")
	}
	b = s.Board()
	if len(b.Columns[domain.ColumnInProgress].Tasks) != 1 || len(b.Columns[domain.ColumnDone].Tasks) != 2 {
		t.Fatalf("unexpected counts after toggle: %v / %v", taskIDs(b, domain.ColumnInProgress), taskIDs(b, domain.ColumnDone))
	}

	s.ResetBoard(ctx)
	if !reflect.DeepEqual(s.Board(), domain.DefaultBoard()) {
		t.Fatal("reset did not restore the default board")
	}
}

func TestSaveFailureKeepsInMemoryState(t *testing.T) {
	p := &fakePersister{saveErr: &domain.PersistenceError{Op: "save", Slot: "board", Err: errors.New("quota exceeded")}}
	logger, hook := test.NewNullLogger()
	var reported []error
	s := NewStore(context.Background(), p, logger, WithPersistErrorHandler(func(err error) { reported = append(reported, err) }))

	task, err := s.CreateTask(context.Background(), domain.ColumnTodo, "survives", "", "")
	if err != nil {
		t.Fatalf("create should succeed despite persistence failure: %v", err)
	}
	if !s.Board().Has(task.ID) {
		t.Fatal("mutation rolled back after failed save")
	}
	if len(reported) != 1 {
		t.Fatalf("expected persistence error to be reported once, got %d", len(reported))
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error log entry, got %#v", entry)
	}
	if entry.Data["slot"] != "board" {
		t.Fatalf("expected slot field, got %#v", entry.Data)
	}
}

func TestObserversReceiveChangesInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var changes []Change
	unsubscribe := s.Subscribe(func(ch Change) { changes = append(changes, ch) })

	task, _ := s.CreateTask(ctx, domain.ColumnTodo, "observed", "", "")
	s.DeleteTask(ctx, domain.ColumnTodo, "missing")
	s.MoveTask(ctx, task.ID, domain.ColumnTodo, domain.ColumnDone)
	unsubscribe()
	s.ClearAllTasks(ctx)

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Op != "CreateTask" || changes[1].Op != "MoveTask" {
		t.Fatalf("unexpected ops %s, %s", changes[0].Op, changes[1].Op)
	}
	if changes[0].Revision != 1 || changes[1].Revision != 2 {
		t.Fatalf("unexpected revisions %d, %d", changes[0].Revision, changes[1].Revision)
	}
	if col, _, _ := changes[1].Board.Locate(task.ID); col != domain.ColumnDone {
		t.Fatalf("observer snapshot stale, task in %s", col)
	}
}

func TestSlowObserverDoesNotBlockReaders(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var revs []uint64
	s.Subscribe(func(ch Change) {
		mu.Lock()
		revs = append(revs, ch.Revision)
		first := len(revs) == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	})

	firstDone := make(chan struct{})
	go func() {
		s.MoveTask(ctx, "3", domain.ColumnInProgress, domain.ColumnDone)
		close(firstDone)
	}()
	<-entered

	secondDone := make(chan struct{})
	go func() {
		s.MoveTask(ctx, "1", domain.ColumnTodo, domain.ColumnDone)
		close(secondDone)
	}()

	deadline := time.After(2 * time.Second)
	for s.Revision() != 2 {
		select {
		case <-deadline:
			t.Fatalf("second mutation blocked behind observer, revision %d", s.Revision())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if col, _, _ := s.Board().Locate("1"); col != domain.ColumnDone {
		t.Fatalf("reader saw stale board, task 1 in %s", col)
	}
	select {
	case <-secondDone:
		t.Fatal("revision 2 was delivered before revision 1 finished")
	default:
	}

	close(release)
	<-firstDone
	<-secondDone
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(revs, []uint64{1, 2}) {
		t.Fatalf("observers saw revisions %v", revs)
	}
}

func TestObserverSnapshotIsIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	s.Subscribe(func(ch Change) {
		ch.Board.Columns[domain.ColumnTodo].Tasks[0].Title = "tampered"
	})
	s.MoveTask(context.Background(), "3", domain.ColumnInProgress, domain.ColumnDone)
	if s.Board().Columns[domain.ColumnTodo].Tasks[0].Title == "tampered" {
		t.Fatal("observer was able to write through to store state")
	}
}

func TestBoardReturnsIsolatedCopy(t *testing.T) {
	s, _ := newTestStore(t)
	b := s.Board()
	b.Columns[domain.ColumnTodo].Tasks[0].Title = "tampered"
	delete(b.Columns, domain.ColumnDone)
	fresh := s.Board()
	if fresh.Columns[domain.ColumnTodo].Tasks[0].Title == "tampered" {
		t.Fatal("reader wrote through to store state")
	}
	if _, ok := fresh.Columns[domain.ColumnDone]; !ok {
		t.Fatal("reader deleted a column from store state")
	}
}

func TestInvariantHoldsAcrossRandomOperations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	cols := append([]domain.ColumnID{"bogus"}, domain.ColumnOrder...)
	pickCol := func() domain.ColumnID { return cols[rng.Intn(len(cols))] }
	pickID := func() string {
		b := s.Board()
		ids := []string{"ghost"}
		for _, c := range domain.ColumnOrder {
			ids = append(ids, taskIDs(b, c)...)
		}
		return ids[rng.Intn(len(ids))]
	}

	for i := 0; i < 500; i++ {
		switch rng.Intn(7) {
		case 0:
			_, _ = s.CreateTask(ctx, pickCol(), "task", "", "")
		case 1:
			title := "renamed"
			_, _ = s.UpdateTask(ctx, pickID(), TaskFields{Title: &title})
		case 2:
			s.DeleteTask(ctx, pickCol(), pickID())
		case 3, 4:
			s.MoveTask(ctx, pickID(), pickCol(), pickCol())
		case 5:
			_, _ = s.ToggleComplete(ctx, pickCol(), pickID())
		case 6:
			if rng.Intn(20) == 0 {
				s.ResetBoard(ctx)
			}
		}
		assertInvariant(t, s.Board())
	}
}

func TestOperationsRecordSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, _ := newTestStore(t, WithTracer(tp.Tracer("test")))
	ctx := context.Background()
	_, _ = s.CreateTask(ctx, domain.ColumnTodo, "", "", "")
	s.MoveTask(ctx, "1", domain.ColumnTodo, domain.ColumnDone)

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "board.CreateTask" || spans[1].Name() != "board.MoveTask" {
		t.Fatalf("unexpected span names %s, %s", spans[0].Name(), spans[1].Name())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected validation error to be recorded on the span")
	}
	var changed bool
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "board.changed" {
			changed = kv.Value.AsBool()
		}
	}
	if !changed {
		t.Fatal("expected move span to be marked as changed")
	}
}
