package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/yaffw/readtrack/src/internal/domain"
)

// PostgresForumRepo reads and writes the forum tree, its topics and posts.
type PostgresForumRepo struct {
	db *sql.DB
}

func NewForumRepo(db *sql.DB) *PostgresForumRepo {
	return &PostgresForumRepo{db: db}
}

func (r *PostgresForumRepo) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS forums (
			id TEXT PRIMARY KEY,
			parent_id TEXT REFERENCES forums(id),
			name TEXT NOT NULL DEFAULT '',
			level INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			forum_id TEXT NOT NULL REFERENCES forums(id),
			subject TEXT NOT NULL DEFAULT '',
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_post_on TIMESTAMPTZ,
			approved BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE INDEX IF NOT EXISTS topics_forum ON topics (forum_id);
		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			topic_id TEXT NOT NULL REFERENCES topics(id),
			subject TEXT NOT NULL DEFAULT '',
			created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS posts_topic_created ON posts (topic_id, created);
	`)
	return err
}

func (r *PostgresForumRepo) SaveForum(ctx context.Context, forum *domain.Forum) error {
	forum.Level = 0
	if !forum.IsRoot() {
		parent, err := r.GetForum(ctx, forum.ParentID)
		if err != nil {
			return fmt.Errorf("parent of forum %s: %w", forum.ID, err)
		}
		forum.Level = parent.Level + 1
	}

	query := `
		INSERT INTO forums (id, parent_id, name, level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			level = EXCLUDED.level;
	`
	_, err := r.db.ExecContext(ctx, query, forum.ID, nullIfEmpty(forum.ParentID), forum.Name, forum.Level)
	return err
}

func (r *PostgresForumRepo) SaveTopic(ctx context.Context, topic *domain.Topic) error {
	query := `
		INSERT INTO topics (id, forum_id, subject, created, last_post_on, approved)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			forum_id = EXCLUDED.forum_id,
			subject = EXCLUDED.subject,
			last_post_on = EXCLUDED.last_post_on,
			approved = EXCLUDED.approved;
	`
	var lastPostOn sql.NullTime
	if topic.LastPostOn != nil {
		lastPostOn = sql.NullTime{Time: *topic.LastPostOn, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, topic.ID, topic.ForumID, topic.Subject, topic.Created, lastPostOn, topic.Approved)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("forum %s: %w", topic.ForumID, domain.ErrNotFound)
	}
	return err
}

// SavePost stores the post and moves the topic's last activity forward in
// the same transaction.
func (r *PostgresForumRepo) SavePost(ctx context.Context, post *domain.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, topic_id, subject, created)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			created = EXCLUDED.created;
	`, post.ID, post.TopicID, post.Subject, post.Created)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("topic %s: %w", post.TopicID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE topics SET last_post_on = $2
		WHERE id = $1 AND COALESCE(last_post_on, created) < $2
	`, post.TopicID, post.Created)
	if err != nil {
		return err
	}
	return tx.Commit()
}

const forumColumns = `id, parent_id, name, level`

func scanForum(scan func(dest ...any) error) (domain.Forum, error) {
	var f domain.Forum
	var parentID sql.NullString
	if err := scan(&f.ID, &parentID, &f.Name, &f.Level); err != nil {
		return f, err
	}
	f.ParentID = parentID.String
	return f, nil
}

func (r *PostgresForumRepo) GetForum(ctx context.Context, id string) (*domain.Forum, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+forumColumns+` FROM forums WHERE id = $1`, id)
	f, err := scanForum(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("forum %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PostgresForumRepo) ListForums(ctx context.Context) ([]domain.Forum, error) {
	return r.queryForums(ctx, `SELECT `+forumColumns+` FROM forums ORDER BY level ASC, id ASC`)
}

func (r *PostgresForumRepo) Ancestors(ctx context.Context, forumID string) ([]domain.Forum, error) {
	forum, err := r.GetForum(ctx, forumID)
	if err != nil {
		return nil, err
	}
	if forum.IsRoot() {
		return nil, nil
	}

	return r.queryForums(ctx, `
		WITH RECURSIVE chain AS (
			SELECT `+forumColumns+` FROM forums WHERE id = $1
			UNION ALL
			SELECT f.id, f.parent_id, f.name, f.level
			FROM forums f
			JOIN chain c ON f.id = c.parent_id
		)
		SELECT `+forumColumns+` FROM chain ORDER BY level DESC
	`, forum.ParentID)
}

func (r *PostgresForumRepo) queryForums(ctx context.Context, query string, args ...any) ([]domain.Forum, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forums []domain.Forum
	for rows.Next() {
		f, err := scanForum(rows.Scan)
		if err != nil {
			return nil, err
		}
		forums = append(forums, f)
	}
	return forums, rows.Err()
}

const topicColumns = `id, forum_id, subject, created, last_post_on, approved`

func scanTopic(scan func(dest ...any) error) (domain.Topic, error) {
	var t domain.Topic
	var lastPostOn sql.NullTime
	if err := scan(&t.ID, &t.ForumID, &t.Subject, &t.Created, &lastPostOn, &t.Approved); err != nil {
		return t, err
	}
	if lastPostOn.Valid {
		t.LastPostOn = &lastPostOn.Time
	}
	return t, nil
}

func (r *PostgresForumRepo) GetTopic(ctx context.Context, id string) (*domain.Topic, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	t, err := scanTopic(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresForumRepo) ListTopics(ctx context.Context, forumIDs ...string) ([]domain.Topic, error) {
	if len(forumIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+topicColumns+`
		FROM topics
		WHERE forum_id = ANY($1)
		ORDER BY created ASC, id ASC
	`, pq.Array(forumIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows.Scan)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (r *PostgresForumRepo) CountApprovedTopics(ctx context.Context, forumID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM topics WHERE forum_id = $1 AND approved
	`, forumID).Scan(&n)
	return n, err
}

func (r *PostgresForumRepo) FirstPostAfter(ctx context.Context, topicID string, after time.Time) (*domain.Post, error) {
	query := `
		SELECT id, topic_id, subject, created
		FROM posts
		WHERE topic_id = $1 AND created > $2
		ORDER BY created ASC, id ASC
		LIMIT 1
	`
	var p domain.Post
	err := r.db.QueryRowContext(ctx, query, topicID, after).Scan(&p.ID, &p.TopicID, &p.Subject, &p.Created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
