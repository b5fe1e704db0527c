package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
)

type trackKey struct {
	entityID string
	userID   string
}

type topicTrack struct {
	forumID  string
	markTime time.Time
}

// InMemoryTrackStore keeps read tracks in maps. Transactions are serialized
// with direct calls and roll back by restoring a snapshot.
type InMemoryTrackStore struct {
	txMu  sync.Mutex
	state *trackState
}

func NewTrackStore() *InMemoryTrackStore {
	return &InMemoryTrackStore{
		state: &trackState{
			forums: make(map[trackKey]time.Time),
			topics: make(map[trackKey]topicTrack),
		},
	}
}

func (s *InMemoryTrackStore) GetForumTracks(ctx context.Context, userID string, forumIDs []string) (map[string]time.Time, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.GetForumTracks(ctx, userID, forumIDs)
}

func (s *InMemoryTrackStore) GetTopicTracks(ctx context.Context, userID string, topicIDs []string) (map[string]time.Time, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.GetTopicTracks(ctx, userID, topicIDs)
}

func (s *InMemoryTrackStore) UpsertForumTrack(ctx context.Context, userID, forumID string, markTime time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.UpsertForumTrack(ctx, userID, forumID, markTime)
}

func (s *InMemoryTrackStore) UpsertTopicTrack(ctx context.Context, userID string, topic *domain.Topic, markTime time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.UpsertTopicTrack(ctx, userID, topic, markTime)
}

func (s *InMemoryTrackStore) DeleteForumTopicTracks(ctx context.Context, userID string, forumIDs []string) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.DeleteForumTopicTracks(ctx, userID, forumIDs)
}

func (s *InMemoryTrackStore) CountForumTopicTracks(ctx context.Context, userID, forumID string) (int, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.CountForumTopicTracks(ctx, userID, forumID)
}

func (s *InMemoryTrackStore) WithinTx(ctx context.Context, fn func(tx ports.TrackStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.state.snapshot()
	if err := fn(&trackTx{trackState: s.state}); err != nil {
		s.state.restore(snap)
		return err
	}
	return nil
}

// LockForum is a no-op: transactions already run one at a time.
func (s *InMemoryTrackStore) LockForum(ctx context.Context, userID, forumID string) error {
	return nil
}

// trackTx is the store handed to a transaction body. Nested WithinTx calls
// join the running transaction.
type trackTx struct {
	*trackState
}

func (t *trackTx) WithinTx(ctx context.Context, fn func(tx ports.TrackStore) error) error {
	return fn(t)
}

type trackState struct {
	mu     sync.RWMutex
	forums map[trackKey]time.Time
	topics map[trackKey]topicTrack
}

type trackSnapshot struct {
	forums map[trackKey]time.Time
	topics map[trackKey]topicTrack
}

func (s *trackState) snapshot() trackSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := trackSnapshot{
		forums: make(map[trackKey]time.Time, len(s.forums)),
		topics: make(map[trackKey]topicTrack, len(s.topics)),
	}
	for k, v := range s.forums {
		snap.forums[k] = v
	}
	for k, v := range s.topics {
		snap.topics[k] = v
	}
	return snap
}

func (s *trackState) restore(snap trackSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forums = snap.forums
	s.topics = snap.topics
}

func (s *trackState) GetForumTracks(ctx context.Context, userID string, forumIDs []string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks := make(map[string]time.Time)
	for _, id := range forumIDs {
		if t, ok := s.forums[trackKey{id, userID}]; ok {
			tracks[id] = t
		}
	}
	return tracks, nil
}

func (s *trackState) GetTopicTracks(ctx context.Context, userID string, topicIDs []string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks := make(map[string]time.Time)
	for _, id := range topicIDs {
		if t, ok := s.topics[trackKey{id, userID}]; ok {
			tracks[id] = t.markTime
		}
	}
	return tracks, nil
}

func (s *trackState) UpsertForumTrack(ctx context.Context, userID, forumID string, markTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forums[trackKey{forumID, userID}] = markTime
	return nil
}

func (s *trackState) UpsertTopicTrack(ctx context.Context, userID string, topic *domain.Topic, markTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[trackKey{topic.ID, userID}] = topicTrack{forumID: topic.ForumID, markTime: markTime}
	return nil
}

func (s *trackState) DeleteForumTopicTracks(ctx context.Context, userID string, forumIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := make(map[string]bool, len(forumIDs))
	for _, id := range forumIDs {
		in[id] = true
	}
	for k, t := range s.topics {
		if k.userID == userID && in[t.forumID] {
			delete(s.topics, k)
		}
	}
	return nil
}

func (s *trackState) CountForumTopicTracks(ctx context.Context, userID, forumID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k, t := range s.topics {
		if k.userID == userID && t.forumID == forumID {
			n++
		}
	}
	return n, nil
}

func (s *trackState) LockForum(ctx context.Context, userID, forumID string) error {
	return nil
}
