package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
)

// TrackingService answers which forums and topics a user has not read yet
// and records what the user read.
//
// Two kinds of tracks are kept per user. A forum track marks every topic of
// the forum last modified at or before its mark time as read. A topic track
// marks one topic as read and takes precedence over the forum track. Marking
// collapses topic tracks into a forum track once every topic of a forum is
// read, and then walks up the tree doing the same for each parent.
type TrackingService struct {
	tracks     ports.TrackStore
	tree       ports.ForumTree
	posts      ports.PostRepository
	visibility ports.ForumVisibility
	log        *slog.Logger
	now        func() time.Time
}

func NewTrackingService(tracks ports.TrackStore, tree ports.ForumTree, posts ports.PostRepository, visibility ports.ForumVisibility, log *slog.Logger) *TrackingService {
	return &TrackingService{
		tracks:     tracks,
		tree:       tree,
		posts:      posts,
		visibility: visibility,
		log:        log.With("component", "tracking"),
		now:        time.Now,
	}
}

// WithClock replaces the time source used for mark times.
func (s *TrackingService) WithClock(now func() time.Time) *TrackingService {
	s.now = now
	return s
}

// Untracked topics count as unread for readers, but never block a collapse.
const (
	untrackedIsUnread  = true
	untrackedIsIgnored = false
)

// isUnread applies the track precedence to a single topic: its own track
// first, then its forum's track, then the untracked policy.
func isUnread(t domain.Topic, topicTracks, forumTracks map[string]time.Time, untracked bool) bool {
	if mark, ok := topicTracks[t.ID]; ok {
		return t.LastModified().After(mark)
	}
	if mark, ok := forumTracks[t.ForumID]; ok {
		return t.LastModified().After(mark)
	}
	return untracked
}

// classify fetches the tracks touching topics in two lookups and returns the
// unread ones, each at most once, in input order.
func classify(ctx context.Context, store ports.TrackStore, userID string, topics []domain.Topic, untracked bool) ([]domain.Topic, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	topicIDs := make([]string, 0, len(topics))
	forumIDs := make([]string, 0, len(topics))
	seenForum := make(map[string]bool)
	for _, t := range topics {
		topicIDs = append(topicIDs, t.ID)
		if !seenForum[t.ForumID] {
			seenForum[t.ForumID] = true
			forumIDs = append(forumIDs, t.ForumID)
		}
	}

	topicTracks, err := store.GetTopicTracks(ctx, userID, topicIDs)
	if err != nil {
		return nil, fmt.Errorf("get topic tracks: %w", err)
	}
	forumTracks, err := store.GetForumTracks(ctx, userID, forumIDs)
	if err != nil {
		return nil, fmt.Errorf("get forum tracks: %w", err)
	}

	var unread []domain.Topic
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		if isUnread(t, topicTracks, forumTracks, untracked) {
			unread = append(unread, t)
		}
	}
	return unread, nil
}

// consolidate replaces the user's topic tracks in a forum with one forum track.
func consolidate(ctx context.Context, tx ports.TrackStore, userID, forumID string, markTime time.Time) error {
	if err := tx.DeleteForumTopicTracks(ctx, userID, []string{forumID}); err != nil {
		return fmt.Errorf("delete topic tracks of forum %s: %w", forumID, err)
	}
	if err := tx.UpsertForumTrack(ctx, userID, forumID, markTime); err != nil {
		return fmt.Errorf("upsert forum track %s: %w", forumID, err)
	}
	return nil
}

// AllForumsVisible lets every user see every forum.
type AllForumsVisible struct{}

func (AllForumsVisible) VisibleForums(ctx context.Context, forums []domain.Forum, user *domain.User) ([]domain.Forum, error) {
	return forums, nil
}
