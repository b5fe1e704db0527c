package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTrackStore_UpsertRefreshesMarkTime(t *testing.T) {
	ctx := context.Background()
	s := NewTrackStore()

	require.NoError(t, s.UpsertForumTrack(ctx, "u1", "f1", t0))
	require.NoError(t, s.UpsertForumTrack(ctx, "u1", "f1", t0.Add(time.Hour)))

	tracks, err := s.GetForumTracks(ctx, "u1", []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"f1": t0.Add(time.Hour)}, tracks)

	other, err := s.GetForumTracks(ctx, "u2", []string{"f1"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTrackStore_ConcurrentUpsertsKeepOneTrack(t *testing.T) {
	ctx := context.Background()
	s := NewTrackStore()
	topic := &domain.Topic{ID: "t1", ForumID: "f1"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.UpsertTopicTrack(ctx, "u1", topic, t0.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()

	n, err := s.CountForumTopicTracks(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTrackStore_DeleteForumTopicTracks(t *testing.T) {
	ctx := context.Background()
	s := NewTrackStore()

	require.NoError(t, s.UpsertTopicTrack(ctx, "u1", &domain.Topic{ID: "t1", ForumID: "f1"}, t0))
	require.NoError(t, s.UpsertTopicTrack(ctx, "u1", &domain.Topic{ID: "t2", ForumID: "f2"}, t0))
	require.NoError(t, s.UpsertTopicTrack(ctx, "u2", &domain.Topic{ID: "t1", ForumID: "f1"}, t0))

	require.NoError(t, s.DeleteForumTopicTracks(ctx, "u1", []string{"f1"}))

	mine, err := s.GetTopicTracks(ctx, "u1", []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"t2": t0}, mine)

	theirs, err := s.GetTopicTracks(ctx, "u2", []string{"t1"})
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestTrackStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewTrackStore()
	require.NoError(t, s.UpsertForumTrack(ctx, "u1", "f1", t0))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx ports.TrackStore) error {
		require.NoError(t, tx.UpsertForumTrack(ctx, "u1", "f1", t0.Add(time.Hour)))
		require.NoError(t, tx.UpsertForumTrack(ctx, "u1", "f2", t0))
		return boom
	})
	require.ErrorIs(t, err, boom)

	tracks, err := s.GetForumTracks(ctx, "u1", []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"f1": t0}, tracks)
}

func TestTrackStore_WithinTxCommitsAndNests(t *testing.T) {
	ctx := context.Background()
	s := NewTrackStore()

	err := s.WithinTx(ctx, func(tx ports.TrackStore) error {
		if err := tx.UpsertForumTrack(ctx, "u1", "f1", t0); err != nil {
			return err
		}
		return tx.WithinTx(ctx, func(inner ports.TrackStore) error {
			return inner.UpsertForumTrack(ctx, "u1", "f2", t0)
		})
	})
	require.NoError(t, err)

	tracks, err := s.GetForumTracks(ctx, "u1", []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}
