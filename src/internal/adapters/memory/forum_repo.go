package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yaffw/readtrack/src/internal/domain"
)

// InMemoryForumRepo holds the forum tree, its topics and their posts.
type InMemoryForumRepo struct {
	forums map[string]domain.Forum
	topics map[string]domain.Topic
	posts  map[string][]domain.Post // by topic ID
	mu     sync.RWMutex
}

func NewForumRepo() *InMemoryForumRepo {
	return &InMemoryForumRepo{
		forums: make(map[string]domain.Forum),
		topics: make(map[string]domain.Topic),
		posts:  make(map[string][]domain.Post),
	}
}

// SaveForum stores the forum and derives its level from the parent, which
// must already be saved.
func (r *InMemoryForumRepo) SaveForum(ctx context.Context, forum *domain.Forum) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	forum.Level = 0
	if !forum.IsRoot() {
		parent, ok := r.forums[forum.ParentID]
		if !ok {
			return fmt.Errorf("parent forum %s: %w", forum.ParentID, domain.ErrNotFound)
		}
		forum.Level = parent.Level + 1
	}
	r.forums[forum.ID] = *forum
	return nil
}

func (r *InMemoryForumRepo) SaveTopic(ctx context.Context, topic *domain.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.forums[topic.ForumID]; !ok {
		return fmt.Errorf("forum %s: %w", topic.ForumID, domain.ErrNotFound)
	}
	r.topics[topic.ID] = *topic
	return nil
}

// SavePost stores the post and moves the topic's last activity forward.
func (r *InMemoryForumRepo) SavePost(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[post.TopicID]
	if !ok {
		return fmt.Errorf("topic %s: %w", post.TopicID, domain.ErrNotFound)
	}

	posts := r.posts[post.TopicID]
	replaced := false
	for i := range posts {
		if posts[i].ID == post.ID {
			posts[i] = *post
			replaced = true
		}
	}
	if !replaced {
		posts = append(posts, *post)
	}
	r.posts[post.TopicID] = posts

	if post.Created.After(topic.LastModified()) {
		last := post.Created
		topic.LastPostOn = &last
		r.topics[topic.ID] = topic
	}
	return nil
}

func (r *InMemoryForumRepo) GetForum(ctx context.Context, id string) (*domain.Forum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forum, ok := r.forums[id]
	if !ok {
		return nil, fmt.Errorf("forum %s: %w", id, domain.ErrNotFound)
	}
	return &forum, nil
}

func (r *InMemoryForumRepo) ListForums(ctx context.Context) ([]domain.Forum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forums := make([]domain.Forum, 0, len(r.forums))
	for _, f := range r.forums {
		forums = append(forums, f)
	}
	sort.Slice(forums, func(i, j int) bool {
		if forums[i].Level != forums[j].Level {
			return forums[i].Level < forums[j].Level
		}
		return forums[i].ID < forums[j].ID
	})
	return forums, nil
}

func (r *InMemoryForumRepo) Ancestors(ctx context.Context, forumID string) ([]domain.Forum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forum, ok := r.forums[forumID]
	if !ok {
		return nil, fmt.Errorf("forum %s: %w", forumID, domain.ErrNotFound)
	}

	var ancestors []domain.Forum
	for !forum.IsRoot() {
		parent, ok := r.forums[forum.ParentID]
		if !ok {
			return nil, fmt.Errorf("parent forum %s: %w", forum.ParentID, domain.ErrNotFound)
		}
		ancestors = append(ancestors, parent)
		forum = parent
	}
	return ancestors, nil
}

func (r *InMemoryForumRepo) GetTopic(ctx context.Context, id string) (*domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topic, ok := r.topics[id]
	if !ok {
		return nil, fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	return &topic, nil
}

func (r *InMemoryForumRepo) ListTopics(ctx context.Context, forumIDs ...string) ([]domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in := make(map[string]bool, len(forumIDs))
	for _, id := range forumIDs {
		in[id] = true
	}

	var topics []domain.Topic
	for _, t := range r.topics {
		if in[t.ForumID] {
			topics = append(topics, t)
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		if !topics[i].Created.Equal(topics[j].Created) {
			return topics[i].Created.Before(topics[j].Created)
		}
		return topics[i].ID < topics[j].ID
	})
	return topics, nil
}

func (r *InMemoryForumRepo) CountApprovedTopics(ctx context.Context, forumID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, t := range r.topics {
		if t.ForumID == forumID && t.Approved {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryForumRepo) FirstPostAfter(ctx context.Context, topicID string, after time.Time) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var first *domain.Post
	for i := range r.posts[topicID] {
		p := r.posts[topicID][i]
		if !p.Created.After(after) {
			continue
		}
		if first == nil || p.Created.Before(first.Created) {
			first = &p
		}
	}
	return first, nil
}
