// Package bootstrap holds the startup sequence shared by the ledgerly
// binaries: environment and config loading, the process logger and the
// backing clients, closed in reverse order on the way out.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/db"
	"github.com/angelmondragon/ledgerly-backend/pkg/instance"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/migrate"
	"github.com/angelmondragon/ledgerly-backend/pkg/pubsub"
	"github.com/angelmondragon/ledgerly-backend/pkg/redis"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage/gcs"
)

type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// loadConfig is swapped in tests.
var loadConfig = config.Load

// Start loads .env when present, then config, and returns a process whose
// logger honours the configured level.
func Start(kind string) (*Process, error) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), "no .env file, using process environment")
	}
	cfg, err := loadConfig()
	if err != nil {
		boot.Error(context.Background(), "config.load_failed", err)
		return nil, err
	}
	cfg.Service.Kind = kind
	return &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       cfg.App.LogLevel,
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}, nil
}

// OnClose registers fn to run during Close. Later registrations close first.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

// Close releases everything registered through OnClose.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(p.Logger.WithField(context.Background(), "resource", c.name), "shutdown.close_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Database connects and brings the schema in line before returning.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	p.OnClose("database", client.Close)
	if err := migrate.Startup(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

func (p *Process) Storage(ctx context.Context) (*gcs.Client, error) {
	client, err := gcs.NewClient(ctx, p.Config.GCS, p.Config.GCP, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	p.OnClose("storage", client.Close)
	return client, nil
}

func (p *Process) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	p.OnClose("pubsub", client.Close)
	return client, nil
}

// InstanceID names this process in logs and lock values.
func (p *Process) InstanceID() string {
	return instance.GetID(p.Kind)
}

// RunContext is cancelled on SIGINT or SIGTERM and carries the process
// identity as log fields.
func (p *Process) RunContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    p.InstanceID(),
	})
	return ctx, stop
}

// Exit closes the process and terminates with a status derived from err.
func (p *Process) Exit(ctx context.Context, err error) {
	code := 0
	if err != nil {
		p.Logger.Error(ctx, p.Kind+".stopped", err)
		code = 1
	}
	if closeErr := p.Close(); closeErr != nil && code == 0 {
		code = 1
	}
	os.Exit(code)
}
