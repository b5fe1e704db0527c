package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaffw/readtrack/src/internal/adapters/httpapi"
	"github.com/yaffw/readtrack/src/internal/adapters/memory"
	"github.com/yaffw/readtrack/src/internal/adapters/postgres"
	"github.com/yaffw/readtrack/src/internal/config"
	"github.com/yaffw/readtrack/src/internal/logging"
	"github.com/yaffw/readtrack/src/internal/ports"
	"github.com/yaffw/readtrack/src/internal/services"
)

// forumStore is the forum tree as the service needs it: read, written by the
// seed loader, and queried for posts.
type forumStore interface {
	ports.ForumTree
	ports.ForumWriter
	ports.PostRepository
}

type adapters struct {
	tracks ports.TrackStore
	forums forumStore
	users  ports.UserRepository
}

func main() {
	configFile := "config.yaml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	var cfg config.TrackerConfig
	loadErr := config.Load(configFile, &cfg)
	cfg.ApplyEnv()

	log := logging.New(cfg.LogLevel)
	if loadErr != nil {
		log.Warn("failed to load config, using defaults/env", "file", configFile, "error", loadErr)
	} else {
		log.Info("loaded config", "file", configFile)
	}
	log.Info("starting readtrack Tracker API")

	a, err := openAdapters(cfg, log)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	if cfg.SeedFile != "" {
		seeder := services.NewSeedLoader(a.forums, log)
		if err := seeder.LoadFile(context.Background(), cfg.SeedFile); err != nil {
			log.Warn("failed to load seed file", "file", cfg.SeedFile, "error", err)
		}
	}

	tracking := services.NewTrackingService(a.tracks, a.forums, a.forums, services.AllForumsVisible{}, log)
	authMW := NewAuthMiddleware(a.users, cfg.OIDC, log)

	api := http.NewServeMux()
	httpapi.NewServer(tracking, a.forums, log).RegisterHandlers(api)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", authMW.Authenticate(api))

	log.Info("Tracker API listening", "addr", "http://0.0.0.0:"+cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, httpapi.RequestLogger(log, mux)); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// openAdapters connects to Postgres when a database URL is configured and
// falls back to the in-memory adapters otherwise.
func openAdapters(cfg config.TrackerConfig, log *slog.Logger) (*adapters, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no database_url set, running with in-memory storage")
		return &adapters{
			tracks: memory.NewTrackStore(),
			forums: memory.NewForumRepo(),
			users:  memory.NewUserRepo(),
		}, nil
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	forums := postgres.NewForumRepo(db)
	if err := forums.InitSchema(); err != nil {
		return nil, err
	}
	tracks := postgres.NewTrackRepo(db)
	if err := tracks.InitSchema(); err != nil {
		return nil, err
	}
	users := postgres.NewUserRepo(db)
	if err := users.InitSchema(); err != nil {
		return nil, err
	}

	log.Info("connected to Postgres")
	return &adapters{tracks: tracks, forums: forums, users: users}, nil
}
