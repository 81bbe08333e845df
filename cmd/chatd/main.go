// Command chatd serves realtime presence, typing and message events over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/auth"
	"github.com/hugomanns/realtime-chat/internal/cache"
	"github.com/hugomanns/realtime-chat/internal/config"
	"github.com/hugomanns/realtime-chat/internal/httpapi"
	"github.com/hugomanns/realtime-chat/internal/ingest"
	"github.com/hugomanns/realtime-chat/internal/logging"
	"github.com/hugomanns/realtime-chat/internal/metrics"
	"github.com/hugomanns/realtime-chat/internal/presence"
	"github.com/hugomanns/realtime-chat/internal/realtime"
	"github.com/hugomanns/realtime-chat/internal/relay"
	"github.com/hugomanns/realtime-chat/internal/store"
	"github.com/hugomanns/realtime-chat/internal/store/memory"
	mongostore "github.com/hugomanns/realtime-chat/internal/store/mongo"
	"github.com/hugomanns/realtime-chat/internal/typing"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type stores struct {
	users         store.UserStore
	messages      store.MessageStore
	conversations store.ConversationStore
	ping          httpapi.Pinger
	close         func(context.Context) error
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTP.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			logger.Warn("store close", zap.Error(err))
		}
	}()

	checks := map[string]httpapi.Pinger{"store": st.ping}

	var presenceOpts []presence.Option
	if cfg.Redis.Addr != "" {
		rdb := cache.NewClient(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer func() { _ = rdb.Close() }()
		pc := cache.NewPresenceCache(rdb, cfg.Redis.PresenceTTL)
		presenceOpts = append(presenceOpts, presence.WithCache(pc))
		checks["redis"] = pc.Ping
		logger.Info("presence cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	dir := presence.NewDirectory()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, dir.Count)

	hub := realtime.NewHub(dir, m, logger.Named("hub"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	ps := presence.NewService(dir, st.users, hub, logger.Named("presence"), presenceOpts...)
	tt := typing.New(hub, typing.WithTimeout(cfg.Realtime.TypingTimeout))
	rs := relay.NewService(st.messages, st.conversations, st.users, hub, logger.Named("relay"))

	verifier := auth.NewVerifier([]byte(cfg.Auth.JWTKey))
	if !verifier.Enabled() {
		logger.Warn("auth.jwt_key is empty; handshakes are not verified")
	}

	ws := realtime.NewHandler(hub, ps, tt, rs, verifier, m, logger.Named("realtime"), realtime.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		EventRate:      cfg.Realtime.EventRate,
		EventBurst:     cfg.Realtime.EventBurst,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		PongWait:       cfg.Realtime.PongWait,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	if cfg.NATS.URL != "" {
		nc, err := ingest.Connect(cfg.NATS.URL, logger.Named("nats"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		sub := ingest.NewSubscriber(nc, st.messages, rs, ingest.Config{
			Subject: cfg.NATS.Subject,
			Queue:   cfg.NATS.Queue,
			Workers: cfg.NATS.Workers,
		}, logger.Named("ingest"))
		if err := sub.Start(ctx); err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Stop()
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Messages:    rs,
		Presence:    ps,
		Verifier:    verifier,
		WebSocket:   ws,
		Metrics:     m.Handler(),
		Connections: hub,
		Bound:       dir,
		Checks:      checks,
		Log:         logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// closes remaining websocket clients
	stopHub()
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Mongo.URI == "" {
		logger.Warn("mongo.uri is empty; using the in-memory store")
		mem := memory.New()
		users := mem.Users()
		return &stores{
			users:         users,
			messages:      mem.Messages(),
			conversations: mem.Conversations(),
			ping:          users.Ping,
			close:         func(context.Context) error { return nil },
		}, nil
	}

	db, err := mongostore.NewDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		_ = db.Client().Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	users := mongostore.NewUserRepository(db)
	return &stores{
		users:         users,
		messages:      mongostore.NewMessageRepository(db),
		conversations: mongostore.NewConversationRepository(db),
		ping:          users.Ping,
		close:         db.Client().Disconnect,
	}, nil
}
