package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
	"github.com/yaffw/readtrack/src/internal/services"
)

type userKey struct{}

// WithUser attaches the authenticated user to the request context.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user attached to ctx, or the anonymous user.
func UserFrom(ctx context.Context) *domain.User {
	if user, ok := ctx.Value(userKey{}).(*domain.User); ok && user != nil {
		return user
	}
	return domain.Anonymous
}

type TopicIDsRequest struct {
	TopicIDs []string `json:"topicIds"`
}

type ForumIDsRequest struct {
	ForumIDs []string `json:"forumIds"`
}

type ForumsResponse struct {
	Forums []domain.Forum `json:"forums"`
}

type TopicsResponse struct {
	Topics []domain.Topic `json:"topics"`
}

type PostResponse struct {
	Post *domain.Post `json:"post"`
}

// Server exposes the tracking service as a JSON API.
type Server struct {
	tracking *services.TrackingService
	tree     ports.ForumTree
	log      *slog.Logger
}

func NewServer(tracking *services.TrackingService, tree ports.ForumTree, log *slog.Logger) *Server {
	return &Server{tracking: tracking, tree: tree, log: log.With("component", "httpapi")}
}

func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/unread/forums", s.handleUnreadForums)
	mux.HandleFunc("POST /api/v1/unread/topics", s.handleUnreadTopics)
	mux.HandleFunc("GET /api/v1/topics/{id}/oldest-unread", s.handleOldestUnread)
	mux.HandleFunc("POST /api/v1/forums/read", s.handleMarkForumsRead)
	mux.HandleFunc("POST /api/v1/topics/{id}/read", s.handleMarkTopicRead)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (s *Server) handleUnreadForums(w http.ResponseWriter, r *http.Request) {
	forums, err := s.tracking.UnreadForumsFor(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, ForumsResponse{Forums: nonNil(forums)})
}

func (s *Server) handleUnreadTopics(w http.ResponseWriter, r *http.Request) {
	var req TopicIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	topics := make([]domain.Topic, 0, len(req.TopicIDs))
	for _, id := range req.TopicIDs {
		topic, err := s.tree.GetTopic(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		topics = append(topics, *topic)
	}

	unread, err := s.tracking.UnreadTopics(r.Context(), UserFrom(r.Context()), topics)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, TopicsResponse{Topics: nonNil(unread)})
}

func (s *Server) handleOldestUnread(w http.ResponseWriter, r *http.Request) {
	topic, err := s.tree.GetTopic(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := s.tracking.OldestUnreadPost(r.Context(), UserFrom(r.Context()), topic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, PostResponse{Post: post})
}

func (s *Server) handleMarkForumsRead(w http.ResponseWriter, r *http.Request) {
	var req ForumIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	forums := make([]domain.Forum, 0, len(req.ForumIDs))
	for _, id := range req.ForumIDs {
		forum, err := s.tree.GetForum(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		forums = append(forums, *forum)
	}

	if err := s.tracking.MarkForumsRead(r.Context(), UserFrom(r.Context()), forums); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkTopicRead(w http.ResponseWriter, r *http.Request) {
	topic, err := s.tree.GetTopic(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tracking.MarkTopicRead(r.Context(), UserFrom(r.Context()), topic); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get(RequestIDHeader), "error", err)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an ID and logs it once served.
func RequestLogger(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request served", "method", r.Method, "path", r.URL.Path, "request_id", id, "duration", time.Since(start))
	})
}
