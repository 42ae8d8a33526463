package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID     string
	Status string
}

type fakeServer struct {
	rows     []row
	fetches  int
	fetchErr error
}

func (s *fakeServer) fetch(context.Context) ([]row, error) {
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]row, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func byID(id string) func(row) bool {
	return func(r row) bool { return r.ID == id }
}

func setStatus(status string) func(*row) {
	return func(r *row) { r.Status = status }
}

func TestApplyShowsTentativeStateDuringCommit(t *testing.T) {
	srv := &fakeServer{rows: []row{{ID: "a", Status: "pending"}, {ID: "b", Status: "pending"}}}
	list := New[row](srv.fetch)
	require.NoError(t, list.Refresh(context.Background()))

	err := list.Apply(context.Background(), byID("a"), setStatus("confirmed"), func(context.Context) error {
		items := list.Items()
		assert.Equal(t, "confirmed", items[0].Status)
		assert.Equal(t, "pending", items[1].Status)
		srv.rows[0].Status = "confirmed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.fetches)
	assert.Equal(t, "confirmed", list.Items()[0].Status)
}

func TestApplyRefetchesAfterFailedCommit(t *testing.T) {
	srv := &fakeServer{rows: []row{{ID: "a", Status: "pending"}}}
	list := New[row](srv.fetch)
	require.NoError(t, list.Refresh(context.Background()))

	commitErr := errors.New("boom")
	err := list.Apply(context.Background(), byID("a"), setStatus("cancelled"), func(context.Context) error {
		return commitErr
	})
	require.ErrorIs(t, err, commitErr)
	assert.Equal(t, 2, srv.fetches)
	assert.Equal(t, "pending", list.Items()[0].Status)
}

func TestApplyJoinsRefetchFailure(t *testing.T) {
	srv := &fakeServer{rows: []row{{ID: "a", Status: "pending"}}}
	list := New[row](srv.fetch)
	require.NoError(t, list.Refresh(context.Background()))

	commitErr := errors.New("commit failed")
	fetchErr := errors.New("fetch failed")
	srv.fetchErr = fetchErr
	err := list.Apply(context.Background(), byID("a"), setStatus("cancelled"), func(context.Context) error {
		return commitErr
	})
	assert.ErrorIs(t, err, commitErr)
	assert.ErrorIs(t, err, fetchErr)
	// refetch failed, so the tentative state stays visible
	assert.Equal(t, "cancelled", list.Items()[0].Status)
}

func TestRefreshKeepsItemsOnError(t *testing.T) {
	srv := &fakeServer{rows: []row{{ID: "a"}}}
	list := New[row](srv.fetch)
	assert.False(t, list.Loaded())
	require.NoError(t, list.Refresh(context.Background()))
	assert.True(t, list.Loaded())

	srv.fetchErr = errors.New("down")
	require.Error(t, list.Refresh(context.Background()))
	assert.Len(t, list.Items(), 1)
}

func TestItemsReturnsCopy(t *testing.T) {
	srv := &fakeServer{rows: []row{{ID: "a", Status: "pending"}}}
	list := New[row](srv.fetch)
	require.NoError(t, list.Refresh(context.Background()))

	items := list.Items()
	items[0].Status = "mutated"
	assert.Equal(t, "pending", list.Items()[0].Status)
}
