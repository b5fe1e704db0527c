package ports

import (
	"context"
	"time"

	"github.com/yaffw/readtrack/src/internal/domain"
)

// TrackStore persists forum and topic read tracks, keyed by (entity, user).
// Upserts are idempotent: concurrent creates of the same track both succeed.
type TrackStore interface {
	// GetForumTracks returns mark times by forum ID for the forums that have a track.
	GetForumTracks(ctx context.Context, userID string, forumIDs []string) (map[string]time.Time, error)
	// GetTopicTracks returns mark times by topic ID for the topics that have a track.
	GetTopicTracks(ctx context.Context, userID string, topicIDs []string) (map[string]time.Time, error)
	UpsertForumTrack(ctx context.Context, userID, forumID string, markTime time.Time) error
	UpsertTopicTrack(ctx context.Context, userID string, topic *domain.Topic, markTime time.Time) error
	// DeleteForumTopicTracks removes the user's topic tracks for every topic in the given forums.
	DeleteForumTopicTracks(ctx context.Context, userID string, forumIDs []string) error
	CountForumTopicTracks(ctx context.Context, userID, forumID string) (int, error)
	// LockForum serializes transactions that decide a collapse of the
	// user's tracks in the forum. Held until the transaction ends.
	LockForum(ctx context.Context, userID, forumID string) error
	// WithinTx runs fn against a store bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx TrackStore) error) error
}

type ForumTree interface {
	GetForum(ctx context.Context, id string) (*domain.Forum, error)
	ListForums(ctx context.Context) ([]domain.Forum, error)
	// Ancestors returns the parents of the forum, nearest first, ending at the root.
	Ancestors(ctx context.Context, forumID string) ([]domain.Forum, error)
	GetTopic(ctx context.Context, id string) (*domain.Topic, error)
	// ListTopics returns all topics of the given forums in a single lookup.
	ListTopics(ctx context.Context, forumIDs ...string) ([]domain.Topic, error)
	CountApprovedTopics(ctx context.Context, forumID string) (int, error)
}

type ForumWriter interface {
	SaveForum(ctx context.Context, forum *domain.Forum) error
	SaveTopic(ctx context.Context, topic *domain.Topic) error
	SavePost(ctx context.Context, post *domain.Post) error
}

type PostRepository interface {
	// FirstPostAfter returns the earliest post of the topic created strictly
	// after the given time, or nil if there is none.
	FirstPostAfter(ctx context.Context, topicID string, after time.Time) (*domain.Post, error)
}

// ForumVisibility narrows a forum list to the forums a user may read.
type ForumVisibility interface {
	VisibleForums(ctx context.Context, forums []domain.Forum, user *domain.User) ([]domain.Forum, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
}
