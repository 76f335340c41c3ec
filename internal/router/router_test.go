package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/joacominatel/pgbrowse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBase    = database.Descriptor("host=localhost user=alice")
	waitTimeout = 2 * time.Second
)

type execCall struct {
	desc database.Descriptor
	sql  string
}

type fakeExec struct {
	mu          sync.Mutex
	calls       []execCall
	inFlight    int
	maxInFlight int

	results map[string]*database.RawTable
	err     error

	// gate, when set, holds each Execute until a value is received.
	gate    chan struct{}
	started chan string
}

func (f *fakeExec) Execute(_ context.Context, desc database.Descriptor, sql string) (*database.RawTable, error) {
	f.mu.Lock()
	f.calls = append(f.calls, execCall{desc: desc, sql: sql})
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- sql
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.results[sql]; ok {
		return t, nil
	}
	return &database.RawTable{Columns: []string{}}, nil
}

func (f *fakeExec) snapshot() ([]execCall, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execCall(nil), f.calls...), f.maxInFlight
}

type unreachableDialer struct{}

func (unreachableDialer) Dial(context.Context, database.Descriptor) (database.Conn, error) {
	return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
}

func startRouter(t *testing.T, exec Executor) (*Router, <-chan error) {
	t.Helper()
	r := New(exec, WithLogger(testutil.NewTestLogger(t)))
	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()

	t.Cleanup(func() {
		r.Client().Close()
		select {
		case <-r.Done():
		case <-time.After(waitTimeout):
			t.Error("router did not stop")
		}
	})
	return r, errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("router did not return")
		return nil
	}
}

func waitStarted(t *testing.T, started <-chan string) string {
	t.Helper()
	select {
	case sql := <-started:
		return sql
	case <-time.After(waitTimeout):
		t.Fatal("execution did not start")
		return ""
	}
}

func newRequest(q query.Query) Request {
	return Request{ID: uuid.New(), Base: testBase, Query: q}
}

func TestRouter_ListDatabases(t *testing.T) {
	exec := &fakeExec{results: map[string]*database.RawTable{
		"SELECT datname FROM pg_database;": {
			Columns: []string{"datname"},
			Rows:    [][]string{{"app_db"}, {"postgres"}},
		},
	}}
	r, _ := startRouter(t, exec)

	env, err := r.Client().Do(context.Background(), testBase, query.ListDatabases{})
	require.NoError(t, err)
	require.True(t, env.OK())

	assert.NotEqual(t, uuid.Nil, env.RequestID)
	assert.Equal(t, "", env.Database)
	assert.Equal(t, "SELECT datname FROM pg_database;", env.SQL)
	require.NotNil(t, env.Table)
	assert.Equal(t, []string{"datname"}, env.Table.Columns)
	assert.Equal(t, [][]query.Cell{
		{query.DatabaseName("app_db")},
		{query.DatabaseName("postgres")},
	}, env.Table.Rows)

	calls, _ := exec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, testBase, calls[0].desc)
}

func TestRouter_RoundTripMatchesQueryModel(t *testing.T) {
	queries := []query.Query{
		query.ListDatabases{},
		query.ListTables{Database: "app_db"},
		query.ListTableContents{Database: "app_db", Table: "users"},
		query.ListTableContents{Table: "users"},
		query.CustomSQL{SQL: "SELECT now()"},
	}

	exec := &fakeExec{}
	r, _ := startRouter(t, exec)

	for _, q := range queries {
		t.Run(query.Name(q), func(t *testing.T) {
			env, err := r.Client().Do(context.Background(), testBase, q)
			require.NoError(t, err)
			assert.Equal(t, query.TargetDatabase(q), env.Database)
			assert.Equal(t, query.SQLText(q), env.SQL)

			calls, _ := exec.snapshot()
			last := calls[len(calls)-1]
			assert.Equal(t, query.Descriptor(testBase, q), last.desc)
			assert.Equal(t, query.SQLText(q), last.sql)
		})
	}
}

func TestRouter_TableContentsZeroRows(t *testing.T) {
	exec := &fakeExec{results: map[string]*database.RawTable{
		"SELECT * FROM users;": {Columns: []string{"id", "email"}},
	}}
	r, _ := startRouter(t, exec)

	env, err := r.Client().Do(context.Background(), testBase, query.ListTableContents{Table: "users"})
	require.NoError(t, err)
	require.NoError(t, env.Err)
	require.NotNil(t, env.Table)
	assert.Equal(t, []string{"id", "email"}, env.Table.Columns)
	assert.Empty(t, env.Table.Rows)
}

func TestRouter_ConnectionFailureKeepsMetadata(t *testing.T) {
	mgr := database.NewManager(unreachableDialer{}, testutil.NewTestLogger(t))
	r, _ := startRouter(t, mgr)

	queries := []query.Query{
		query.ListDatabases{},
		query.ListTables{Database: "app_db"},
		query.ListTableContents{Database: "app_db", Table: "users"},
		query.CustomSQL{Database: "other", SQL: "SELECT 1"},
	}

	for _, q := range queries {
		t.Run(query.Name(q), func(t *testing.T) {
			env, err := r.Client().Do(context.Background(), testBase, q)
			require.NoError(t, err, "a failed query is not a channel error")

			assert.False(t, env.OK())
			assert.Nil(t, env.Table)
			assert.Equal(t, query.TargetDatabase(q), env.Database)
			assert.Equal(t, query.SQLText(q), env.SQL)

			var connErr *database.ConnectionError
			require.ErrorAs(t, env.Err, &connErr)
			assert.Equal(t, database.UserMessage, env.Err.Error())
		})
	}

	// The router keeps serving after failures.
	assert.NotEqual(t, StateStopped, r.State())
}

func TestRouter_NilQuery(t *testing.T) {
	r, _ := startRouter(t, &fakeExec{})

	r.requests <- Request{ID: uuid.New(), Base: testBase}
	env := <-r.responses

	assert.ErrorIs(t, env.Err, ErrNoQuery)
	assert.Nil(t, env.Table)
}

func TestRouter_PointerVariant(t *testing.T) {
	exec := &fakeExec{results: map[string]*database.RawTable{
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'public';": {
			Columns: []string{"table_name"},
			Rows:    [][]string{{"users"}},
		},
	}}
	r, _ := startRouter(t, exec)

	env, err := r.Client().Do(context.Background(), testBase, &query.ListTables{Database: "app_db"})
	require.NoError(t, err)
	require.True(t, env.OK())
	assert.Equal(t, "app_db", env.Database)
	assert.Equal(t, [][]query.Cell{{query.TableName("users")}}, env.Table.Rows)

	calls, _ := exec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, testBase.WithDatabase("app_db"), calls[0].desc)
}

func TestRouter_NilPointerVariantKeepsServing(t *testing.T) {
	exec := &fakeExec{}
	r, _ := startRouter(t, exec)

	var q *query.ListTableContents
	env, err := r.Client().Do(context.Background(), testBase, q)
	require.NoError(t, err)
	assert.ErrorIs(t, env.Err, query.ErrUnknownVariant)
	assert.Nil(t, env.Table)

	calls, _ := exec.snapshot()
	assert.Empty(t, calls)

	env, err = r.Client().Do(context.Background(), testBase, query.ListDatabases{})
	require.NoError(t, err)
	assert.True(t, env.OK())
}

func TestRouter_ResponsesInArrivalOrder(t *testing.T) {
	exec := &fakeExec{}
	r, _ := startRouter(t, exec)

	sqls := []string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4", "SELECT 5"}
	reqs := make([]Request, len(sqls))
	for i, s := range sqls {
		reqs[i] = newRequest(query.CustomSQL{SQL: s})
	}

	go func() {
		for _, req := range reqs {
			r.requests <- req
		}
	}()

	for i := range reqs {
		select {
		case env := <-r.responses:
			assert.Equal(t, reqs[i].ID, env.RequestID)
			assert.Equal(t, sqls[i], env.SQL)
		case <-time.After(waitTimeout):
			t.Fatalf("no response for request %d", i)
		}
	}

	_, maxInFlight := exec.snapshot()
	assert.Equal(t, 1, maxInFlight)
}

func TestRouter_Backpressure(t *testing.T) {
	exec := &fakeExec{
		gate:    make(chan struct{}),
		started: make(chan string, 4),
	}
	r, _ := startRouter(t, exec)

	first := newRequest(query.CustomSQL{SQL: "SELECT 1"})
	second := newRequest(query.CustomSQL{SQL: "SELECT 2"})
	third := newRequest(query.CustomSQL{SQL: "SELECT 3"})

	r.requests <- first
	assert.Equal(t, "SELECT 1", waitStarted(t, exec.started))
	assert.Equal(t, StateExecuting, r.State())

	// The capacity-1 buffer takes one waiting request...
	select {
	case r.requests <- second:
	case <-time.After(waitTimeout):
		t.Fatal("second request should fit the buffer")
	}

	// ...and the next send blocks while the first query is running.
	select {
	case r.requests <- third:
		t.Fatal("third request should block while the first is in flight")
	case <-time.After(50 * time.Millisecond):
	}

	calls, _ := exec.snapshot()
	assert.Len(t, calls, 1, "second request must not start before the first settles")

	close(exec.gate)
	r.requests <- third

	for _, want := range []Request{first, second, third} {
		env := <-r.responses
		assert.Equal(t, want.ID, env.RequestID)
	}

	_, maxInFlight := exec.snapshot()
	assert.Equal(t, 1, maxInFlight)
}

func TestRouter_AbandonedBeforeRequest(t *testing.T) {
	exec := &fakeExec{}
	r, errc := startRouter(t, exec)

	r.Client().Abandon()
	r.requests <- newRequest(query.ListDatabases{})

	assert.ErrorIs(t, waitRun(t, errc), ErrAbandoned)
	assert.Equal(t, StateStopped, r.State())

	calls, _ := exec.snapshot()
	assert.Empty(t, calls, "no connection should be opened for an unanswerable request")
}

func TestRouter_AbandonedWhileExecuting(t *testing.T) {
	exec := &fakeExec{
		gate:    make(chan struct{}),
		started: make(chan string, 2),
	}
	r, errc := startRouter(t, exec)

	r.requests <- newRequest(query.CustomSQL{SQL: "SELECT 1"})
	waitStarted(t, exec.started)
	r.requests <- newRequest(query.CustomSQL{SQL: "SELECT 2"})

	r.Client().Abandon()
	exec.gate <- struct{}{}

	assert.ErrorIs(t, waitRun(t, errc), ErrAbandoned)

	calls, _ := exec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "SELECT 1", calls[0].sql)
}

func TestRouter_StopsWhenRequestsClosed(t *testing.T) {
	r, errc := startRouter(t, &fakeExec{})

	r.Client().Close()
	assert.NoError(t, waitRun(t, errc))
	assert.Equal(t, StateStopped, r.State())

	_, err := r.Client().Do(context.Background(), testBase, query.ListDatabases{})
	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, "send", chErr.Op)

	// Close is idempotent.
	r.Client().Close()
}

func TestRouter_ContextCancelled(t *testing.T) {
	r := New(&fakeExec{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, waitRun(t, errc), context.Canceled)
	assert.Equal(t, StateStopped, r.State())
}

func TestRouter_RunTwice(t *testing.T) {
	r, _ := startRouter(t, &fakeExec{})

	// Make sure the first Run has claimed the router.
	_, err := r.Client().Do(context.Background(), testBase, query.ListDatabases{})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRunning)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "executing", StateExecuting.String())
	assert.Equal(t, "responding", StateResponding.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(99).String())
}
