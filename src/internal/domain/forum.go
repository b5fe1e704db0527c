package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a forum, topic or post does not exist.
var ErrNotFound = errors.New("not found")

type Forum struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"` // empty for root forums
	Name     string `json:"name"`
	Level    int    `json:"level"` // 0 for root forums
}

func (f Forum) IsRoot() bool {
	return f.ParentID == ""
}

type Topic struct {
	ID         string     `json:"id"`
	ForumID    string     `json:"forumId"`
	Subject    string     `json:"subject"`
	Created    time.Time  `json:"created"`
	LastPostOn *time.Time `json:"lastPostOn,omitempty"`
	Approved   bool       `json:"approved"`
}

// LastModified is the last activity time of the topic, falling back to its
// creation time when nothing was posted after it was opened.
func (t Topic) LastModified() time.Time {
	if t.LastPostOn != nil {
		return *t.LastPostOn
	}
	return t.Created
}

type Post struct {
	ID      string    `json:"id"`
	TopicID string    `json:"topicId"`
	Subject string    `json:"subject,omitempty"`
	Created time.Time `json:"created"`
}

// ForumReadTrack says every topic of the forum last modified at or before
// MarkTime has been read by the user.
type ForumReadTrack struct {
	ForumID  string
	UserID   string
	MarkTime time.Time
}

// TopicReadTrack says the user read the topic as of MarkTime. It overrides
// the forum track for that topic.
type TopicReadTrack struct {
	TopicID  string
	UserID   string
	MarkTime time.Time
}
