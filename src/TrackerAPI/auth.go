package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/yaffw/readtrack/src/internal/adapters/httpapi"
	"github.com/yaffw/readtrack/src/internal/config"
	"github.com/yaffw/readtrack/src/internal/domain"
	"github.com/yaffw/readtrack/src/internal/ports"
)

type AuthMiddleware struct {
	Verifier *oidc.IDTokenVerifier
	UserRepo ports.UserRepository
	log      *slog.Logger
}

func NewAuthMiddleware(userRepo ports.UserRepository, oidcCfg config.OIDCConfig, log *slog.Logger) *AuthMiddleware {
	log = log.With("component", "auth")
	if oidcCfg.ProviderURL == "" {
		log.Warn("OIDC provider URL not set, bearer tokens will be rejected")
		return &AuthMiddleware{UserRepo: userRepo, log: log}
	}

	provider, err := oidc.NewProvider(context.Background(), oidcCfg.ProviderURL)
	if err != nil {
		// Don't crash, requests carrying a token fail until restart.
		log.Error("failed to query OIDC provider", "provider", oidcCfg.ProviderURL, "error", err)
		return &AuthMiddleware{UserRepo: userRepo, log: log}
	}

	// Access tokens often carry an audience other than the client ID.
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          oidcCfg.ClientID,
		SkipClientIDCheck: true,
	})

	return &AuthMiddleware{
		Verifier: verifier,
		UserRepo: userRepo,
		log:      log,
	}
}

// Authenticate resolves the bearer token to a user. Requests without an
// Authorization header continue as the anonymous user.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r.WithContext(httpapi.WithUser(r.Context(), domain.Anonymous)))
			return
		}

		if m.Verifier == nil {
			http.Error(w, "OIDC not configured on server", http.StatusServiceUnavailable)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		idToken, err := m.Verifier.Verify(ctx, parts[1])
		if err != nil {
			m.log.Info("token verification failed", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		var claims struct {
			Sub               string `json:"sub"`
			Email             string `json:"email"`
			PreferredUsername string `json:"preferred_username"`
		}
		if err := idToken.Claims(&claims); err != nil || claims.Sub == "" {
			http.Error(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		user, err := m.provision(ctx, claims.Sub, claims.Email, claims.PreferredUsername)
		if err != nil {
			m.log.Error("user provisioning failed", "user", claims.Sub, "error", err)
			http.Error(w, "User provisioning failed", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(httpapi.WithUser(ctx, user)))
	})
}

// provision creates the user on first sight and refreshes LastSeen after.
func (m *AuthMiddleware) provision(ctx context.Context, sub, email, username string) (*domain.User, error) {
	now := time.Now()
	user, err := m.UserRepo.GetByID(ctx, sub)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		user = &domain.User{ID: sub, Email: email, CreatedAt: now, LastSeen: now}
		if user.Email == "" {
			user.Email = username
		}
		if err := m.UserRepo.Save(ctx, user); err != nil {
			return nil, err
		}
		m.log.Info("provisioned new user", "user", user.ID, "email", user.Email)
		return user, nil
	case err != nil:
		return nil, err
	}

	user.LastSeen = now
	if email != "" && user.Email != email {
		user.Email = email
	}
	if err := m.UserRepo.Save(ctx, user); err != nil {
		m.log.Warn("failed to refresh user", "user", user.ID, "error", err)
	}
	return user, nil
}
