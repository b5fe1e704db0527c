package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yaffw/readtrack/src/internal/config"
	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
)

// Seed is a forum tree as written in a seed file. Missing IDs are generated.
type Seed struct {
	Forums []SeedForum `json:"forums" yaml:"forums"`
}

type SeedForum struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Topics   []SeedTopic `json:"topics" yaml:"topics"`
	Children []SeedForum `json:"children" yaml:"children"`
}

type SeedTopic struct {
	ID       string     `json:"id" yaml:"id"`
	Subject  string     `json:"subject" yaml:"subject"`
	Created  time.Time  `json:"created" yaml:"created"`
	Approved *bool      `json:"approved" yaml:"approved"` // defaults to true
	Posts    []SeedPost `json:"posts" yaml:"posts"`
}

type SeedPost struct {
	ID      string    `json:"id" yaml:"id"`
	Subject string    `json:"subject" yaml:"subject"`
	Created time.Time `json:"created" yaml:"created"`
}

type SeedLoader struct {
	writer ports.ForumWriter
	log    *slog.Logger
}

func NewSeedLoader(writer ports.ForumWriter, log *slog.Logger) *SeedLoader {
	return &SeedLoader{writer: writer, log: log.With("component", "seed")}
}

// LoadFile reads a YAML or JSON seed file and writes its tree.
func (l *SeedLoader) LoadFile(ctx context.Context, path string) error {
	var seed Seed
	if err := config.Load(path, &seed); err != nil {
		return err
	}
	return l.Load(ctx, seed)
}

// Load writes the tree parents first, so every forum's level is known when
// its children are saved.
func (l *SeedLoader) Load(ctx context.Context, seed Seed) error {
	var counts struct{ forums, topics, posts int }

	var walk func(parentID string, forums []SeedForum) error
	walk = func(parentID string, forums []SeedForum) error {
		for _, sf := range forums {
			forum := domain.Forum{ID: idOrNew(sf.ID), ParentID: parentID, Name: sf.Name}
			if err := l.writer.SaveForum(ctx, &forum); err != nil {
				return fmt.Errorf("failed to save forum %s: %w", forum.ID, err)
			}
			counts.forums++

			for _, st := range sf.Topics {
				topic := domain.Topic{
					ID:       idOrNew(st.ID),
					ForumID:  forum.ID,
					Subject:  st.Subject,
					Created:  st.Created,
					Approved: st.Approved == nil || *st.Approved,
				}
				if err := l.writer.SaveTopic(ctx, &topic); err != nil {
					return fmt.Errorf("failed to save topic %s: %w", topic.ID, err)
				}
				counts.topics++

				for _, sp := range st.Posts {
					post := domain.Post{ID: idOrNew(sp.ID), TopicID: topic.ID, Subject: sp.Subject, Created: sp.Created}
					if err := l.writer.SavePost(ctx, &post); err != nil {
						return fmt.Errorf("failed to save post %s: %w", post.ID, err)
					}
					counts.posts++
				}
			}

			if err := walk(forum.ID, sf.Children); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk("", seed.Forums); err != nil {
		return err
	}
	l.log.Info("seeded forum tree", "forums", counts.forums, "topics", counts.topics, "posts", counts.posts)
	return nil
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}
