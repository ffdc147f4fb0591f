package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulse/syncd/internal/api"
	"github.com/pulse/syncd/internal/bridge"
	"github.com/pulse/syncd/internal/cache"
	cachememory "github.com/pulse/syncd/internal/cache/memory"
	cacheredis "github.com/pulse/syncd/internal/cache/redis"
	"github.com/pulse/syncd/internal/channel"
	"github.com/pulse/syncd/internal/config"
	"github.com/pulse/syncd/internal/logger"
	"github.com/pulse/syncd/internal/metrics"
	"github.com/pulse/syncd/internal/session"
	"github.com/pulse/syncd/internal/store"
	"github.com/pulse/syncd/internal/syncer"
)

func main() {
	logger.SetPrefix("client")
	dev := flag.Bool("dev", false, "use in-memory snapshot cache (no Redis required)")
	flag.Parse()

	logger.Info("starting sync client")
	cfg := config.Load()

	// Логин-флоу вне этого демона: токен и id пользователя приходят из окружения.
	token := os.Getenv("PULSE_TOKEN")
	userID := os.Getenv("PULSE_USER_ID")
	if token == "" || userID == "" {
		logger.Error("PULSE_TOKEN and PULSE_USER_ID are required")
		os.Exit(1)
	}

	var onLogout func()
	holder := session.NewHolder(func() {
		if onLogout != nil {
			onLogout()
		}
	})
	holder.Set(token, userID)
	sess := holder.Boundary()

	snap := connectCache(cfg, *dev)
	defer snap.Close()

	restClient := api.NewClient(cfg.GatewayURL, sess)

	messages := store.NewMessageStore(restClient, nil, sess)
	notifications := store.NewNotificationStore(restClient)
	presence := store.NewPresenceStore()
	typing := store.NewTypingStore(cfg.TypingTTL)
	live := store.NewLiveStore()

	sync := syncer.New(messages, notifications, presence, typing, live, sess, snap, nil, cfg.PageLimit)

	mgr := channel.NewManager(channel.Config{
		URL:            cfg.ChannelURL,
		ReconnectDelay: cfg.ReconnectDelay,
		MaxReconnects:  cfg.MaxReconnects,
		EmitBufferSize: cfg.EmitBufferSize,
		WriteTimeout:   cfg.WriteTimeout,
		PongTimeout:    cfg.PongTimeout,
		MaxMessageSize: cfg.MaxMessageSize,
	}, sess, sync)
	mgr.OnReconnect = func() { metrics.Reconnects.Inc() }

	// Теперь, когда менеджер есть, замыкаем циклические зависимости.
	messages.SetEmitter(mgr)
	br := bridge.New(sync, mgr, cfg.PageLimit)
	sync.SetSink(br.Feed())
	onLogout = func() {
		logger.Error("session rejected, clearing local state")
		mgr.Disconnect()
		sync.ResetAll()
	}

	primeCtx, primeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	sync.Prime(primeCtx)
	primeCancel()

	go mgr.Connect()

	srv := &http.Server{
		Addr:         cfg.BridgeAddr,
		Handler:      br.Router(cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE держит соединение открытым
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Infof("ui bridge listening on %s", cfg.BridgeAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("bridge: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("bridge shutdown: %v", err)
	}
	mgr.Disconnect()
	sync.ResetAll()
	logger.Info("bye")
}

// connectCache подключает Redis с повторами; в -dev используется память.
func connectCache(cfg *config.Config, dev bool) cache.SnapshotStore {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	if dev {
		logger.Info("using in-memory snapshot cache")
		return cachememory.New(ttl)
	}
	deadline := time.Now().Add(30 * time.Second)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cacheredis.New(ctx, cfg.Redis.URL, ttl)
		cancel()
		if err == nil {
			return client
		}
		if time.Now().After(deadline) {
			logger.Errorf("redis unavailable, falling back to memory cache: %v", err)
			return cachememory.New(ttl)
		}
		logger.Errorf("redis connect failed, retry in %v: %v", backoff, err)
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
