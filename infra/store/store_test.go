package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/model"
)

const day = model.DayKey("2025-06-02")

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "crew.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(nil, nil),
		"sqlite": sq,
	}
}

func TestPersistenceContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := model.Assignment{ID: "tmp-1", JobID: "j1", CrewID: "c2", Date: day, StartMinutes: 60, EndMinutes: 120, Status: model.StatusScheduled, EndAtHQ: true}
			saved, err := s.Create(ctx, a)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(saved.ID, "asg-"), "server assigns the id")
			assert.NotEqual(t, "tmp-1", saved.ID)
			assert.True(t, saved.EndAtHQ)

			b, err := s.Create(ctx, model.Assignment{JobID: "j2", CrewID: "c1", Date: day, StartMinutes: 300, EndMinutes: 360, Status: model.StatusScheduled})
			require.NoError(t, err)
			_, err = s.Create(ctx, model.Assignment{JobID: "j3", CrewID: "c1", Date: "2025-06-03", StartMinutes: 0, EndMinutes: 60, Status: model.StatusScheduled})
			require.NoError(t, err)

			saved.StartMinutes, saved.EndMinutes = 90, 150
			updated, err := s.Update(ctx, saved)
			require.NoError(t, err)
			assert.Equal(t, 90, updated.StartMinutes)

			_, err = s.Update(ctx, model.Assignment{ID: "missing", JobID: "j1", Date: day})
			assert.ErrorIs(t, err, commit.ErrNotFound)

			list, err := s.List(ctx, day)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, b.ID, list[0].ID, "ordered by crew then start")
			assert.Equal(t, 90, list[1].StartMinutes)

			require.NoError(t, s.Delete(ctx, b.ID))
			assert.ErrorIs(t, s.Delete(ctx, b.ID), commit.ErrNotFound)
			list, err = s.List(ctx, day)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestJobsRoundTrip(t *testing.T) {
	doc := `jobs:
  - id: j1
    title: Boiler service
    address: 12 Elm St
  - id: j2
    title: Site survey
`
	jobs, err := ReadJobs(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutJobs(ctx, jobs))
			dir, err := s.Jobs(ctx)
			require.NoError(t, err)
			addr, ok := dir.JobAddress("j1")
			assert.True(t, ok)
			assert.Equal(t, model.Address("12 Elm St"), addr)
			_, ok = dir.JobAddress("j2")
			assert.False(t, ok, "a job without an address is not schedulable by address")
		})
	}

	_, err = ReadJobs(strings.NewReader("jobs:\n  - title: nameless\n"))
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestMemoryStoreHonoursCancellation(t *testing.T) {
	s := NewMemoryStore([]model.Assignment{{ID: "a1", Date: day}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Create(ctx, model.Assignment{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Delete(ctx, "a1"), context.Canceled)
}
