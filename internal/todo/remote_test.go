package todo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada-sync/internal/model"
	"github.com/Makepad-fr/tada-sync/internal/tablesvc"
)

// flakyDriver fails the verbs it has an error for and passes the rest to an
// in-memory table.
type flakyDriver struct {
	*tablesvc.MemoryDriver
	selectErr, insertErr, updateErr, deleteErr error
}

func (d *flakyDriver) Select(ctx context.Context, q tablesvc.Query) ([]tablesvc.Row, error) {
	if d.selectErr != nil {
		return nil, d.selectErr
	}
	return d.MemoryDriver.Select(ctx, q)
}

func (d *flakyDriver) Insert(ctx context.Context, table string, row tablesvc.Row) (tablesvc.Row, error) {
	if d.insertErr != nil {
		return tablesvc.Row{}, d.insertErr
	}
	return d.MemoryDriver.Insert(ctx, table, row)
}

func (d *flakyDriver) Update(ctx context.Context, q tablesvc.Query, p tablesvc.Patch) ([]tablesvc.Row, error) {
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	return d.MemoryDriver.Update(ctx, q, p)
}

func (d *flakyDriver) Delete(ctx context.Context, q tablesvc.Query) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	return d.MemoryDriver.Delete(ctx, q)
}

func newRemote(t *testing.T) (*RemoteStore, *flakyDriver) {
	t.Helper()
	d := &flakyDriver{MemoryDriver: tablesvc.NewMemoryDriver()}
	s := NewRemote(tablesvc.NewClient(d))
	require.NoError(t, s.Load(context.Background()))
	return s, d
}

func TestRemoteStore_LoadNewestFirst(t *testing.T) {
	d := tablesvc.NewMemoryDriver()
	c := tablesvc.NewClient(d)
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		_, err := c.From(tablesvc.DefaultTable).Insert(tablesvc.Row{Title: title}).Single(ctx)
		require.NoError(t, err)
	}

	s := NewRemote(c)
	require.NoError(t, s.Load(ctx))

	todos := s.Todos()
	require.Len(t, todos, 3)
	assert.Equal(t, "three", todos[0].Text)
	assert.Equal(t, "one", todos[2].Text)
	require.NotNil(t, todos[0].CreatedAt)
}

func TestRemoteStore_LoadFailureLeavesCacheEmpty(t *testing.T) {
	d := &flakyDriver{MemoryDriver: tablesvc.NewMemoryDriver(), selectErr: errors.New("network down")}
	s := NewRemote(tablesvc.NewClient(d))

	err := s.Load(context.Background())
	assert.ErrorContains(t, err, "network down")
	assert.Empty(t, s.Todos())
}

func TestRemoteStore_LoadUsesConfiguredTable(t *testing.T) {
	d := tablesvc.NewMemoryDriver()
	c := tablesvc.NewClient(d)
	ctx := context.Background()
	_, err := c.From("chores").Insert(tablesvc.Row{Title: "dishes"}).Single(ctx)
	require.NoError(t, err)

	s := NewRemote(c, WithTable("chores"))
	require.NoError(t, s.Load(ctx))
	assert.Len(t, s.Todos(), 1)
}

func TestRemoteStore_AddPrepends(t *testing.T) {
	s, _ := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, " first ")
	require.NoError(t, err)
	assert.Equal(t, "first", a.Text)
	assert.False(t, a.Done)
	assert.NotNil(t, a.CreatedAt)

	b, err := s.Add(ctx, "second")
	require.NoError(t, err)

	todos := s.Todos()
	require.Len(t, todos, 2)
	assert.Equal(t, b.ID, todos[0].ID)
	assert.Equal(t, a.ID, todos[1].ID)
	assert.False(t, s.Loading())
}

func TestRemoteStore_AddRejectsBlankText(t *testing.T) {
	s, d := newRemote(t)
	d.insertErr = errors.New("must not be called")

	_, err := s.Add(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, s.Todos())
	assert.False(t, s.Loading())
}

func TestRemoteStore_AddFailure(t *testing.T) {
	s, d := newRemote(t)
	ctx := context.Background()
	_, err := s.Add(ctx, "kept")
	require.NoError(t, err)
	before := s.Todos()

	d.insertErr = errors.New("network error: connection reset")
	_, err = s.Add(ctx, "lost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "network error: connection reset")
	assert.Equal(t, before, s.Todos())
	assert.False(t, s.Loading())
}

// blockingDriver holds inserts until released.
type blockingDriver struct {
	*tablesvc.MemoryDriver
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDriver) Insert(ctx context.Context, table string, row tablesvc.Row) (tablesvc.Row, error) {
	d.entered <- struct{}{}
	<-d.release
	return d.MemoryDriver.Insert(ctx, table, row)
}

func TestRemoteStore_AddWhileLoading(t *testing.T) {
	d := &blockingDriver{
		MemoryDriver: tablesvc.NewMemoryDriver(),
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	s := NewRemote(tablesvc.NewClient(d))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Add(ctx, "slow")
		assert.NoError(t, err)
	}()

	select {
	case <-d.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("insert never started")
	}
	assert.True(t, s.Loading())

	_, err := s.Add(ctx, "impatient")
	assert.ErrorIs(t, err, ErrAddInFlight)

	close(d.release)
	wg.Wait()

	assert.False(t, s.Loading())
	todos := s.Todos()
	require.Len(t, todos, 1)
	assert.Equal(t, "slow", todos[0].Text)
}

func TestRemoteStore_ToggleIsItsOwnInverse(t *testing.T) {
	s, _ := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)
	_, err = s.Add(ctx, "b")
	require.NoError(t, err)
	before := s.Todos()

	require.NoError(t, s.Toggle(ctx, a.ID))
	after := s.Todos()
	assert.True(t, after[1].Done)
	assert.Equal(t, before[0], after[0])

	require.NoError(t, s.Toggle(ctx, a.ID))
	assert.Equal(t, before, s.Todos())
}

func TestRemoteStore_ToggleCompleteUsesPassedState(t *testing.T) {
	s, _ := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, s.ToggleComplete(ctx, a))
	assert.True(t, s.Todos()[0].Done)
}

func TestRemoteStore_ToggleFailure(t *testing.T) {
	s, d := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)
	before := s.Todos()

	d.updateErr = errors.New("timeout")
	assert.ErrorContains(t, s.Toggle(ctx, a.ID), "timeout")
	assert.Equal(t, before, s.Todos())
}

func TestRemoteStore_ToggleUnknownIsNoop(t *testing.T) {
	s, d := newRemote(t)
	d.updateErr = errors.New("must not be called")

	assert.NoError(t, s.Toggle(context.Background(), 77))
}

func TestRemoteStore_ToggleRowGoneRemotely(t *testing.T) {
	s, d := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, d.MemoryDriver.Delete(ctx, tablesvc.Query{
		Table: tablesvc.DefaultTable,
		Where: []tablesvc.Condition{{Column: tablesvc.ColID, Value: a.ID}},
	}))

	err = s.Toggle(ctx, a.ID)
	assert.ErrorIs(t, err, tablesvc.ErrNoRows)
	assert.False(t, s.Todos()[0].Done)
}

func TestRemoteStore_DeleteIsIdempotent(t *testing.T) {
	s, _ := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)
	_, err = s.Add(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.Len(t, s.Todos(), 1)
	require.NoError(t, s.Delete(ctx, a.ID))
	assert.Len(t, s.Todos(), 1)
}

func TestRemoteStore_DeleteFailure(t *testing.T) {
	s, d := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)

	d.deleteErr = errors.New("forbidden")
	assert.ErrorContains(t, s.Delete(ctx, a.ID), "forbidden")
	assert.Len(t, s.Todos(), 1)
}

func TestRemoteStore_ViewIsCacheOnly(t *testing.T) {
	s, d := newRemote(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.Toggle(ctx, a.ID))
	_, err = s.Add(ctx, "b")
	require.NoError(t, err)

	d.selectErr = errors.New("offline")

	assert.Len(t, s.View(model.FilterAll), 2)
	assert.Len(t, s.View(model.FilterActive), 1)
	assert.Equal(t, s.View(model.FilterCompleted), s.View(model.FilterCompleted))
	assert.Equal(t, a.ID, s.View(model.FilterCompleted)[0].ID)
}

func TestRemoteStore_BuyMilkScenario(t *testing.T) {
	s, _ := newRemote(t)
	ctx := context.Background()

	milk, err := s.Add(ctx, "Buy milk")
	require.NoError(t, err)
	require.Len(t, s.Todos(), 1)

	require.NoError(t, s.Toggle(ctx, milk.ID))
	assert.True(t, s.Todos()[0].Done)
	assert.Empty(t, s.View(model.FilterActive))
	assert.Len(t, s.View(model.FilterCompleted), 1)

	require.NoError(t, s.Delete(ctx, milk.ID))
	assert.Empty(t, s.Todos())
}

func TestIDSource_Monotonic(t *testing.T) {
	now := time.UnixMilli(1000)
	src := NewIDSource(func() time.Time { return now }, 0)

	assert.Equal(t, int64(1000), src.Next())
	assert.Equal(t, int64(1001), src.Next())

	now = time.UnixMilli(5000)
	assert.Equal(t, int64(5000), src.Next())

	now = time.UnixMilli(10)
	assert.Equal(t, int64(5001), src.Next())
}
