package services

import (
	"context"
	"fmt"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/metrics"
	"github.com/yaffw/readtrack/src/internal/ports"
)

// PropagateUpward consolidates the read state of the forum's parents, nearest
// first. Each parent is handled in its own transaction, so a failure leaves
// the parents below it consolidated and the ones above untouched.
func (s *TrackingService) PropagateUpward(ctx context.Context, user *domain.User, forum *domain.Forum) error {
	if !user.IsAuthenticated() || forum == nil {
		return nil
	}
	return s.propagateUpward(ctx, user.ID, forum.ID)
}

func (s *TrackingService) propagateUpward(ctx context.Context, userID, forumID string) error {
	ancestors, err := s.tree.Ancestors(ctx, forumID)
	if err != nil {
		return fmt.Errorf("ancestors of forum %s: %w", forumID, err)
	}

	for _, ancestor := range ancestors {
		topics, err := s.tree.ListTopics(ctx, ancestor.ID)
		if err != nil {
			return fmt.Errorf("list topics of forum %s: %w", ancestor.ID, err)
		}

		stop := false
		err = s.tracks.WithinTx(ctx, func(tx ports.TrackStore) error {
			if err := tx.LockForum(ctx, userID, ancestor.ID); err != nil {
				return fmt.Errorf("lock forum %s: %w", ancestor.ID, err)
			}
			unread, err := classify(ctx, tx, userID, topics, untrackedIsIgnored)
			if err != nil {
				return err
			}
			if len(unread) > 0 {
				stop = true
				return nil
			}
			return consolidate(ctx, tx, userID, ancestor.ID, s.now())
		})
		if err != nil {
			return fmt.Errorf("propagate read state to forum %s: %w", ancestor.ID, err)
		}

		if stop {
			metrics.PropagationSteps.WithLabelValues(metrics.ResultStopped).Inc()
			s.log.Debug("propagation stopped", "user", userID, "forum", ancestor.ID)
			return nil
		}
		metrics.PropagationSteps.WithLabelValues(metrics.ResultConsolidated).Inc()
	}
	return nil
}
