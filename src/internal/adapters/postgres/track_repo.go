package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
)

// PostgresTrackRepo stores read tracks. Topic tracks carry their forum ID so
// a forum's tracks can be dropped without joining the topics table.
type PostgresTrackRepo struct {
	db *sql.DB // nil when bound to a transaction
	q  queryer
}

func NewTrackRepo(db *sql.DB) *PostgresTrackRepo {
	return &PostgresTrackRepo{db: db, q: db}
}

func (r *PostgresTrackRepo) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS forum_read_tracks (
			forum_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			mark_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (forum_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS topic_read_tracks (
			topic_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			forum_id TEXT NOT NULL,
			mark_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (topic_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS topic_read_tracks_forum_user ON topic_read_tracks (forum_id, user_id);
	`)
	return err
}

func (r *PostgresTrackRepo) GetForumTracks(ctx context.Context, userID string, forumIDs []string) (map[string]time.Time, error) {
	return r.getTracks(ctx, `
		SELECT forum_id, mark_time
		FROM forum_read_tracks
		WHERE user_id = $1 AND forum_id = ANY($2)
	`, userID, forumIDs)
}

func (r *PostgresTrackRepo) GetTopicTracks(ctx context.Context, userID string, topicIDs []string) (map[string]time.Time, error) {
	return r.getTracks(ctx, `
		SELECT topic_id, mark_time
		FROM topic_read_tracks
		WHERE user_id = $1 AND topic_id = ANY($2)
	`, userID, topicIDs)
}

func (r *PostgresTrackRepo) getTracks(ctx context.Context, query, userID string, ids []string) (map[string]time.Time, error) {
	tracks := make(map[string]time.Time)
	if len(ids) == 0 {
		return tracks, nil
	}

	rows, err := r.q.QueryContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var markTime time.Time
		if err := rows.Scan(&id, &markTime); err != nil {
			return nil, err
		}
		tracks[id] = markTime
	}
	return tracks, rows.Err()
}

func (r *PostgresTrackRepo) UpsertForumTrack(ctx context.Context, userID, forumID string, markTime time.Time) error {
	query := `
		INSERT INTO forum_read_tracks (forum_id, user_id, mark_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (forum_id, user_id) DO UPDATE SET
			mark_time = EXCLUDED.mark_time;
	`
	_, err := r.q.ExecContext(ctx, query, forumID, userID, markTime)
	return err
}

func (r *PostgresTrackRepo) UpsertTopicTrack(ctx context.Context, userID string, topic *domain.Topic, markTime time.Time) error {
	query := `
		INSERT INTO topic_read_tracks (topic_id, user_id, forum_id, mark_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (topic_id, user_id) DO UPDATE SET
			forum_id = EXCLUDED.forum_id,
			mark_time = EXCLUDED.mark_time;
	`
	_, err := r.q.ExecContext(ctx, query, topic.ID, userID, topic.ForumID, markTime)
	return err
}

func (r *PostgresTrackRepo) DeleteForumTopicTracks(ctx context.Context, userID string, forumIDs []string) error {
	if len(forumIDs) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM topic_read_tracks
		WHERE user_id = $1 AND forum_id = ANY($2)
	`, userID, pq.Array(forumIDs))
	return err
}

func (r *PostgresTrackRepo) CountForumTopicTracks(ctx context.Context, userID, forumID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM topic_read_tracks
		WHERE user_id = $1 AND forum_id = $2
	`, userID, forumID).Scan(&n)
	return n, err
}

// LockForum takes a transaction-scoped advisory lock on (user, forum), so two
// marks in the same forum see each other's topic tracks before deciding a
// collapse. Outside a transaction the lock is released at once.
func (r *PostgresTrackRepo) LockForum(ctx context.Context, userID, forumID string) error {
	_, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "readtrack:"+userID+":"+forumID)
	return err
}

// WithinTx runs fn in a transaction. Calls made on an already bound repo
// join the running transaction.
func (r *PostgresTrackRepo) WithinTx(ctx context.Context, fn func(tx ports.TrackStore) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostgresTrackRepo{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
