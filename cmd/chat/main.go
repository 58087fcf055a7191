package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/bloombuddy/internal/chat"
	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/Rrens/bloombuddy/internal/connectivity"
	"github.com/Rrens/bloombuddy/internal/gateway"
	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/Rrens/bloombuddy/internal/logging"
	"github.com/Rrens/bloombuddy/internal/repository/redis"
	"github.com/Rrens/bloombuddy/internal/topic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Without a log file, keep info chatter out of the conversation
	logCfg := cfg.Logging
	if logCfg.File == "" && logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	logCloser, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Client.Store).Msg("failed to open local store")
	}
	defer closeStore()

	client := gateway.NewClient(cfg.Client.ServerURL,
		gateway.WithToken(cfg.Client.Token),
		gateway.WithTimeout(cfg.Client.RequestTimeout),
	)

	catalog := topic.Default()
	session := chat.NewSession(store, catalog)

	outboxOpts := []chat.OutboxOption{chat.WithCapacity(cfg.Client.OutboxMaxEntries)}
	if cfg.Client.OutboxMaxAge > 0 {
		outboxOpts = append(outboxOpts, chat.WithMaxAge(cfg.Client.OutboxMaxAge))
	}
	outbox := chat.NewOutbox(store, outboxOpts...)
	if err := outbox.Load(ctx); err != nil {
		log.Error().Err(err).Msg("failed to load offline queue")
	}

	out := newPrinter(os.Stdout)
	monitor := connectivity.NewMonitor(client.Ping(ctx) == nil)

	coordinator := chat.NewCoordinator(session, outbox, client, monitor, chat.Options{
		UserID:   cfg.Client.UserID,
		Observer: out,
	})

	var wg conc.WaitGroup
	defer wg.Wait()

	monitor.Subscribe(func(online bool) {
		out.status(online)
		if online {
			wg.Go(func() { drain(ctx, coordinator) })
		}
	})

	if cfg.Client.ProbeInterval > 0 {
		wg.Go(func() { probe(ctx, client, monitor, cfg.Client.ProbeInterval) })
	}

	repl := &repl{
		ctx:         ctx,
		in:          os.Stdin,
		out:         out,
		coordinator: coordinator,
		monitor:     monitor,
		catalog:     catalog,
		// Messages queued in an earlier run go out once a topic is open
		opened: func() {
			if monitor.Online() && outbox.Len() > 0 {
				wg.Go(func() { drain(ctx, coordinator) })
			}
		},
	}

	out.line("%s", coordinator.Greeting(ctx))
	out.status(monitor.Online())
	if outbox.Len() > 0 {
		out.line("%d message(s) waiting to be sent.", outbox.Len())
	}

	repl.run()
	stop()
}

func drain(ctx context.Context, coordinator *chat.Coordinator) {
	if coordinator.Session().Topic() == "" {
		return
	}
	if _, err := coordinator.OnConnectivityRestored(ctx); err != nil {
		log.Error().Err(err).Msg("offline sync failed")
	}
}

// openStore opens the local durable store selected by client.store
func openStore(ctx context.Context, cfg *config.Config) (localstore.Store, func(), error) {
	switch cfg.Client.Store {
	case "sqlite", "":
		s, err := localstore.OpenSQLite(ctx, cfg.Client.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		prefix := "bloombuddy:" + cfg.Client.UserID + ":"
		return redis.NewStore(client, prefix), closer(client), nil
	case "memory":
		return localstore.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown local store %q", cfg.Client.Store)
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close local store")
		}
	}
}
