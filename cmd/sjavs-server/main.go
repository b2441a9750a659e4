package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sjavsgame/sjavs-server/internal/auth"
	"github.com/sjavsgame/sjavs-server/internal/server"
	"github.com/sjavsgame/sjavs-server/internal/store"
)

var CLI struct {
	Addr         string   `short:"a" default:"localhost:8080" env:"SJAVS_ADDR" help:"Address to listen on"`
	RedisURL     string   `default:"redis://localhost:6379/0" env:"SJAVS_REDIS_URL" help:"Redis connection URL"`
	RedisPool    int      `default:"30" env:"SJAVS_REDIS_POOL" help:"Redis connection pool size"`
	Origins      []string `env:"SJAVS_ORIGINS" help:"Allowed WebSocket origins (empty allows all)"`
	AuthURL      string   `env:"SJAVS_AUTH_URL" help:"Identity provider validation endpoint (empty disables auth)"`
	AuthSecret   string   `env:"SJAVS_AUTH_SECRET" help:"Shared secret sent to the identity provider"`
	LogLevel     string   `short:"l" default:"info" enum:"debug,info,warn,error" env:"SJAVS_LOG_LEVEL" help:"Log level"`
	StartTimeout duration `default:"10s" help:"Time allowed for the initial Redis connection"`
}

type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func main() {
	kctx := kong.Parse(&CLI)

	logger := log.New(os.Stderr)
	switch CLI.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := store.DefaultConfig(CLI.RedisURL)
	storeCfg.PoolSize = CLI.RedisPool

	openCtx, cancel := context.WithTimeout(ctx, time.Duration(CLI.StartTimeout))
	st, err := store.Open(openCtx, storeCfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to Redis", "url", CLI.RedisURL, "error", err)
		kctx.Exit(1)
	}
	defer st.Close()

	var validator auth.Validator = auth.NewNoopValidator()
	if CLI.AuthURL != "" {
		validator = auth.NewHTTPValidator(CLI.AuthURL, CLI.AuthSecret)
	}

	registry := server.NewRegistry(logger)
	clock := server.NewClock(nil)

	var service *server.GameService
	subscriber := st.NewSubscriber(ctx, func(matchID string, payload []byte) {
		service.Fanout(matchID, payload)
	})
	defer subscriber.Close()

	service = server.NewGameService(st, subscriber, registry, clock, nil, logger)

	wsServer := server.NewServer(server.Config{
		ListenAddr:     CLI.Addr,
		AllowedOrigins: CLI.Origins,
	}, service, validator, logger)

	logger.Info("starting sjavs server", "addr", CLI.Addr, "auth", CLI.AuthURL != "")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return wsServer.Start()
	})
	group.Go(func() error {
		return subscriber.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return wsServer.Stop()
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("server failed", "error", err)
		kctx.Exit(1)
	}
	logger.Info("shutdown complete")
}
