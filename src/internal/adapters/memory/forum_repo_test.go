package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaffw/readtrack/src/internal/domain"
)

func seedTree(t *testing.T) *InMemoryForumRepo {
	t.Helper()
	ctx := context.Background()
	r := NewForumRepo()
	for _, f := range []domain.Forum{
		{ID: "root"},
		{ID: "a", ParentID: "root"},
		{ID: "b", ParentID: "a"},
	} {
		f := f
		require.NoError(t, r.SaveForum(ctx, &f))
	}
	return r
}

func TestForumRepo_LevelsAndAncestors(t *testing.T) {
	ctx := context.Background()
	r := seedTree(t)

	b, err := r.GetForum(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Level)

	ancestors, err := r.Ancestors(ctx, "b")
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "a", ancestors[0].ID)
	assert.Equal(t, "root", ancestors[1].ID)

	rootAncestors, err := r.Ancestors(ctx, "root")
	require.NoError(t, err)
	assert.Empty(t, rootAncestors)

	forums, err := r.ListForums(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "a", "b"}, []string{forums[0].ID, forums[1].ID, forums[2].ID})
}

func TestForumRepo_NotFound(t *testing.T) {
	ctx := context.Background()
	r := seedTree(t)

	_, err := r.GetForum(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.GetTopic(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = r.SaveForum(ctx, &domain.Forum{ID: "orphan", ParentID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = r.SaveTopic(ctx, &domain.Topic{ID: "t", ForumID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestForumRepo_TopicsAndPosts(t *testing.T) {
	ctx := context.Background()
	r := seedTree(t)

	require.NoError(t, r.SaveTopic(ctx, &domain.Topic{ID: "t1", ForumID: "a", Created: t0, Approved: true}))
	require.NoError(t, r.SaveTopic(ctx, &domain.Topic{ID: "t2", ForumID: "b", Created: t0.Add(time.Hour)}))

	topics, err := r.ListTopics(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "t1", topics[0].ID)

	n, err := r.CountApprovedTopics(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.SavePost(ctx, &domain.Post{ID: "p1", TopicID: "t1", Created: t0}))
	require.NoError(t, r.SavePost(ctx, &domain.Post{ID: "p2", TopicID: "t1", Created: t0.Add(48 * time.Hour)}))
	require.NoError(t, r.SavePost(ctx, &domain.Post{ID: "p3", TopicID: "t1", Created: t0.Add(24 * time.Hour)}))

	topic, err := r.GetTopic(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, topic.LastPostOn)
	assert.Equal(t, t0.Add(48*time.Hour), *topic.LastPostOn)

	first, err := r.FirstPostAfter(ctx, "t1", t0)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "p3", first.ID)

	none, err := r.FirstPostAfter(ctx, "t1", t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, none)
}
