// Package storetest holds the behaviour every repository.JobStore backend
// must share. Backend tests call Run with their own constructor.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/repository"
)

func pathSpec() domain.JobSpec {
	return domain.JobSpec{Kind: domain.KindPathEnum, PathEnum: &domain.PathEnumSpec{
		URL: "https://example.com", Threads: 10, Wordlist: 1, ExcludeStatus: []int{404},
	}}
}

// Run exercises the JobStore contract against the store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) repository.JobStore) {
	t.Run("CreateThenRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uuid.New()

		require.NoError(t, s.Create(ctx, id, pathSpec()))

		st, err := s.Read(ctx, id)
		require.NoError(t, err)
		require.Equal(t, id, st.JobID)
		require.Equal(t, domain.KindPathEnum, st.Kind)
		require.Equal(t, domain.StatusPending, st.Status)
		require.Zero(t, st.Progress)
		require.False(t, st.CreatedAt.IsZero())
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uuid.New()

		require.NoError(t, s.Create(ctx, id, pathSpec()))
		require.ErrorIs(t, s.Create(ctx, id, pathSpec()), domain.ErrJobExists)
	})

	t.Run("ReadUnknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Read(context.Background(), uuid.New())
		require.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("WriteUnknown", func(t *testing.T) {
		s := newStore(t)
		err := s.Write(context.Background(), uuid.New(), &domain.JobState{Status: domain.StatusRunning})
		require.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("WriteProgressThenTerminal", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uuid.New()
		require.NoError(t, s.Create(ctx, id, pathSpec()))

		running := &domain.JobState{
			Status:   domain.StatusRunning,
			Progress: 42.5,
			Result: domain.JobResult{Paths: []domain.PathResult{
				{Path: "admin", StatusCode: "200", Size: "1234"},
			}},
		}
		require.NoError(t, s.Write(ctx, id, running))

		st, err := s.Read(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.StatusRunning, st.Status)
		require.InDelta(t, 42.5, st.Progress, 1e-9)
		require.Equal(t, running.Result.Paths, st.Result.Paths)
		require.Equal(t, domain.KindPathEnum, st.Kind)

		done := st.Clone()
		done.Status = domain.StatusSucceeded
		done.Progress = 100
		require.NoError(t, s.Write(ctx, id, done))

		// Terminal states are absorbing.
		err = s.Write(ctx, id, &domain.JobState{Status: domain.StatusCancelled})
		require.ErrorIs(t, err, domain.ErrJobTerminal)

		st, err = s.Read(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSucceeded, st.Status)
		require.Equal(t, 100.0, st.Progress)
	})

	t.Run("FailedKeepsError", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uuid.New()
		require.NoError(t, s.Create(ctx, id, pathSpec()))

		require.NoError(t, s.Write(ctx, id, &domain.JobState{Status: domain.StatusFailed, Error: "process exited with status 1"}))

		st, err := s.Read(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "process exited with status 1", st.Error)
	})

	t.Run("ReadReturnsCopy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uuid.New()
		require.NoError(t, s.Create(ctx, id, pathSpec()))
		require.NoError(t, s.Write(ctx, id, &domain.JobState{
			Status: domain.StatusRunning,
			Result: domain.JobResult{Subdomains: []string{"a.example.com"}},
		}))

		st, err := s.Read(ctx, id)
		require.NoError(t, err)
		st.Result.Subdomains[0] = "mutated"

		again, err := s.Read(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "a.example.com", again.Result.Subdomains[0])
	})

	t.Run("ConcurrentTerminalWritesOneWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uuid.New()
		require.NoError(t, s.Create(ctx, id, pathSpec()))

		statuses := []domain.JobStatus{domain.StatusSucceeded, domain.StatusCancelled, domain.StatusFailed, domain.StatusCancelled}
		errs := make([]error, len(statuses))
		var wg sync.WaitGroup
		for i, status := range statuses {
			wg.Add(1)
			go func(i int, status domain.JobStatus) {
				defer wg.Done()
				errs[i] = s.Write(ctx, id, &domain.JobState{Status: status})
			}(i, status)
		}
		wg.Wait()

		var won int
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			require.ErrorIs(t, err, domain.ErrJobTerminal)
		}
		require.Equal(t, 1, won)
	})
}
