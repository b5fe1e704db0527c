package services

import (
	"context"
	"fmt"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/metrics"
)

// UnreadForumsFor lists the forums visible to the user that hold unread topics.
func (s *TrackingService) UnreadForumsFor(ctx context.Context, user *domain.User) ([]domain.Forum, error) {
	if !user.IsAuthenticated() {
		return nil, nil
	}

	forums, err := s.tree.ListForums(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forums: %w", err)
	}
	visible, err := s.visibility.VisibleForums(ctx, forums, user)
	if err != nil {
		return nil, fmt.Errorf("filter visible forums: %w", err)
	}
	return s.UnreadForums(ctx, user, visible)
}

// UnreadForums returns the forums among candidates that contain at least one
// unread topic. A candidate whose descendant among candidates is unread is
// reported as well. The result keeps the candidates' order.
func (s *TrackingService) UnreadForums(ctx context.Context, user *domain.User, candidates []domain.Forum) ([]domain.Forum, error) {
	if !user.IsAuthenticated() || len(candidates) == 0 {
		return nil, nil
	}
	metrics.UnreadQueries.WithLabelValues(metrics.KindForums).Inc()

	byID := make(map[string]domain.Forum, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, f := range candidates {
		if _, dup := byID[f.ID]; dup {
			continue
		}
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	topics, err := s.tree.ListTopics(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	unreadTopics, err := classify(ctx, s.tracks, user.ID, topics, untrackedIsUnread)
	if err != nil {
		return nil, err
	}

	unread := make(map[string]bool)
	for _, t := range unreadTopics {
		// Walk up through the candidates; stop at one already marked or outside the set.
		for id := t.ForumID; !unread[id]; {
			f, ok := byID[id]
			if !ok {
				break
			}
			unread[id] = true
			if f.IsRoot() {
				break
			}
			id = f.ParentID
		}
	}

	var result []domain.Forum
	for _, id := range ids {
		if unread[id] {
			result = append(result, byID[id])
		}
	}
	return result, nil
}

// UnreadTopics returns the unread topics among topics.
//
// A topic with its own track is unread if it changed after that track's mark
// time. Otherwise a track on its forum decides the same way. A topic with
// neither track has never been seen and is unread. Equal times count as read.
func (s *TrackingService) UnreadTopics(ctx context.Context, user *domain.User, topics []domain.Topic) ([]domain.Topic, error) {
	if !user.IsAuthenticated() || len(topics) == 0 {
		return nil, nil
	}
	metrics.UnreadQueries.WithLabelValues(metrics.KindTopics).Inc()
	return classify(ctx, s.tracks, user.ID, topics, untrackedIsUnread)
}

// OldestUnreadPost returns the first post of the topic created after the
// user's oldest applicable mark time. It returns nil when the topic was never
// tracked, in which case the whole topic is unread, or when every post is read.
func (s *TrackingService) OldestUnreadPost(ctx context.Context, user *domain.User, topic *domain.Topic) (*domain.Post, error) {
	if !user.IsAuthenticated() || topic == nil {
		return nil, nil
	}

	topicTracks, err := s.tracks.GetTopicTracks(ctx, user.ID, []string{topic.ID})
	if err != nil {
		return nil, fmt.Errorf("get topic tracks: %w", err)
	}
	forumTracks, err := s.tracks.GetForumTracks(ctx, user.ID, []string{topic.ForumID})
	if err != nil {
		return nil, fmt.Errorf("get forum tracks: %w", err)
	}

	baseline, hasTopicTrack := topicTracks[topic.ID]
	if forumMark, ok := forumTracks[topic.ForumID]; ok {
		if !hasTopicTrack || forumMark.Before(baseline) {
			baseline = forumMark
		}
	} else if !hasTopicTrack {
		return nil, nil
	}

	post, err := s.posts.FirstPostAfter(ctx, topic.ID, baseline)
	if err != nil {
		return nil, fmt.Errorf("first post after %s: %w", baseline, err)
	}
	return post, nil
}
