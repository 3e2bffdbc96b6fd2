package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/FaresAhmed23/tournament/internal/api"
	"github.com/FaresAhmed23/tournament/internal/auth"
	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/errors"
	"github.com/FaresAhmed23/tournament/internal/event"
	"github.com/FaresAhmed23/tournament/internal/eventbus"
	"github.com/FaresAhmed23/tournament/internal/identity"
	"github.com/FaresAhmed23/tournament/internal/registration"
	"github.com/FaresAhmed23/tournament/internal/scoring"
	"github.com/FaresAhmed23/tournament/internal/standings"
	"github.com/FaresAhmed23/tournament/internal/store/postgres"
	"github.com/FaresAhmed23/tournament/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	CORS struct {
		Origins []string
	}

	Redis struct {
		Sessions struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Cache struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	// Admin seeds a bootstrap administrator account on startup when
	// all three fields are set. An existing account is left as is.
	Admin struct {
		Username string
		Email    string
		Password string
	}
}

type Server struct {
	c Config

	eb *eventbus.Bus

	infra struct {
		redis struct {
			sessions redis.UniversalClient
			cache    redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    *postgres.Store
	}

	service struct {
		auth         *auth.Service
		identity     *identity.Service
		event        *event.Service
		registration *registration.Service
		scoring      *scoring.Service
		standings    *standings.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	telemetry.Register()

	s.eb = eventbus.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()

	if err := s.seedAdmin(); err != nil {
		return nil, fmt.Errorf("server: seed admin: %w", err)
	}

	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.sessions, err = connect(s.c.Redis.Sessions.Addrs, s.c.Redis.Sessions.Pass)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	s.infra.redis.cache, err = connect(s.c.Redis.Cache.Addrs, s.c.Redis.Cache.Pass)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	s.infra.store = postgres.New(db)

	if err := s.infra.store.Init(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	return nil
}

func (s *Server) initService() {
	s.service.auth = auth.NewService(auth.Config{
		Redis:  s.infra.redis.sessions,
		Prefix: s.c.Redis.Sessions.Prefix,
	})

	s.service.identity = identity.NewService(identity.Config{
		Store: s.infra.store,
	})

	s.service.event = event.NewService(event.Config{
		Store: s.infra.store,
	})

	s.service.registration = registration.NewService(registration.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
	})

	s.service.scoring = scoring.NewService(scoring.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
	})

	s.service.standings = standings.NewService(standings.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
		Redis:    s.infra.redis.cache,
		Prefix:   s.c.Redis.Cache.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Engine:       e,
		Auth:         s.service.auth,
		Identity:     s.service.identity,
		Event:        s.service.event,
		Registration: s.service.registration,
		Scoring:      s.service.scoring,
		Standings:    s.service.standings,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   s.c.CORS.Origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) seedAdmin() error {
	a := s.c.Admin
	if a.Username == "" || a.Email == "" || a.Password == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	err = s.infra.store.CreateUser(ctx, &domain.User{
		ID:           id.String(),
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now(),
	})
	if err != nil && !errors.Is(err, errors.CodeAlreadyExists) {
		return err
	}

	return nil
}

func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.infra.postgres.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
