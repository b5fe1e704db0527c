package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/metrics"
	"github.com/yaffw/readtrack/src/internal/ports"
)

// MarkForumsRead marks every topic of the given forums as read now. Topic
// tracks inside those forums become redundant and are removed. Parents of
// the shallowest forum are then consolidated.
func (s *TrackingService) MarkForumsRead(ctx context.Context, user *domain.User, forums []domain.Forum) error {
	if !user.IsAuthenticated() || len(forums) == 0 {
		return nil
	}

	// Levels come from the tree, not the caller.
	sorted := make([]domain.Forum, 0, len(forums))
	for _, f := range forums {
		stored, err := s.tree.GetForum(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("mark forums read: %w", err)
		}
		sorted = append(sorted, *stored)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level < sorted[j].Level
		}
		return sorted[i].ID < sorted[j].ID
	})

	ids := make([]string, len(sorted))
	for i, f := range sorted {
		ids[i] = f.ID
	}

	now := s.now()
	err := s.tracks.WithinTx(ctx, func(tx ports.TrackStore) error {
		for _, f := range sorted {
			if err := tx.UpsertForumTrack(ctx, user.ID, f.ID, now); err != nil {
				return fmt.Errorf("upsert forum track %s: %w", f.ID, err)
			}
		}
		if err := tx.DeleteForumTopicTracks(ctx, user.ID, ids); err != nil {
			return fmt.Errorf("delete topic tracks: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.MarksTotal.WithLabelValues(metrics.KindForum).Add(float64(len(sorted)))
	s.log.Debug("marked forums read", "user", user.ID, "forums", ids)

	return s.propagateUpward(ctx, user.ID, sorted[0].ID)
}

// MarkTopicRead records that the user read the topic now.
//
// Nothing is written when the forum track already covers the topic. Once no
// other topic of the forum is unread, the forum's topic tracks collapse into
// a forum track. Without an earlier forum track this only happens when every
// approved topic has its own track, so that a topic the user never opened is
// not silently marked read.
func (s *TrackingService) MarkTopicRead(ctx context.Context, user *domain.User, topic *domain.Topic) error {
	if !user.IsAuthenticated() || topic == nil {
		return nil
	}

	topic, err := s.tree.GetTopic(ctx, topic.ID)
	if err != nil {
		return fmt.Errorf("mark topic read: %w", err)
	}

	now := s.now()
	marked, collapsed := false, false
	err = s.tracks.WithinTx(ctx, func(tx ports.TrackStore) error {
		if err := tx.LockForum(ctx, user.ID, topic.ForumID); err != nil {
			return fmt.Errorf("lock forum %s: %w", topic.ForumID, err)
		}
		forumTracks, err := tx.GetForumTracks(ctx, user.ID, []string{topic.ForumID})
		if err != nil {
			return fmt.Errorf("get forum track: %w", err)
		}
		forumMark, forumTracked := forumTracks[topic.ForumID]
		if forumTracked && !forumMark.Before(topic.LastModified()) {
			return nil
		}

		if err := tx.UpsertTopicTrack(ctx, user.ID, topic, now); err != nil {
			return fmt.Errorf("upsert topic track %s: %w", topic.ID, err)
		}
		marked = true

		topics, err := s.tree.ListTopics(ctx, topic.ForumID)
		if err != nil {
			return fmt.Errorf("list topics of forum %s: %w", topic.ForumID, err)
		}
		siblings := make([]domain.Topic, 0, len(topics))
		for _, t := range topics {
			if t.ID != topic.ID {
				siblings = append(siblings, t)
			}
		}
		unread, err := classify(ctx, tx, user.ID, siblings, untrackedIsIgnored)
		if err != nil {
			return err
		}
		if len(unread) > 0 {
			return nil
		}

		if !forumTracked {
			tracked, err := tx.CountForumTopicTracks(ctx, user.ID, topic.ForumID)
			if err != nil {
				return fmt.Errorf("count topic tracks: %w", err)
			}
			approved, err := s.tree.CountApprovedTopics(ctx, topic.ForumID)
			if err != nil {
				return fmt.Errorf("count approved topics: %w", err)
			}
			if tracked != approved {
				return nil
			}
		}

		if err := consolidate(ctx, tx, user.ID, topic.ForumID, now); err != nil {
			return err
		}
		collapsed = true
		return nil
	})
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}
	metrics.MarksTotal.WithLabelValues(metrics.KindTopic).Inc()
	s.log.Debug("marked topic read", "user", user.ID, "topic", topic.ID)

	if !collapsed {
		return nil
	}
	metrics.CollapsesTotal.Inc()
	s.log.Debug("collapsed forum", "user", user.ID, "forum", topic.ForumID)
	return s.propagateUpward(ctx, user.ID, topic.ForumID)
}
