package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/pagebuilder"
	"github.com/aretw0/pagebuilder/internal/config"
	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	httpAdapter "github.com/aretw0/pagebuilder/pkg/adapters/http"
	"github.com/aretw0/pagebuilder/pkg/adapters/memory"
	"github.com/aretw0/pagebuilder/pkg/adapters/redis"
	"github.com/aretw0/pagebuilder/pkg/ports"
	"github.com/aretw0/pagebuilder/pkg/rpc"
	"github.com/aretw0/pagebuilder/pkg/session"
)

// backends holds what the selected store driver provides.
type backends struct {
	store    ports.SnapshotStore
	sessions []session.Option
	close    func() error
}

// openStore opens the session store selected by c. The redis driver also
// provides the distributed session lock.
func openStore(c config.StoreConfig) (*backends, error) {
	noop := func() error { return nil }
	switch c.Driver {
	case config.StoreMemory, "":
		return &backends{store: memory.NewStore(), close: noop}, nil
	case config.StoreFile:
		return &backends{store: file.NewStore(c.Path), close: noop}, nil
	case config.StoreRedis:
		var opts []redis.Option
		if c.Prefix != "" {
			opts = append(opts, redis.WithPrefix(c.Prefix))
		}
		if c.TTL > 0 {
			opts = append(opts, redis.WithTTL(time.Duration(c.TTL)))
		}
		store := redis.New(c.RedisAddr, c.RedisPassword, c.RedisDB, opts...)
		return &backends{
			store:    store,
			sessions: []session.Option{session.WithLocker(redis.NewLocker(store.Client(), c.Prefix))},
			close:    store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Driver)
	}
}

// newRPCClient returns a client posting to the configured backend, or nil
// when no backend URL is set.
func newRPCClient(c config.BackendConfig, logger *slog.Logger) *rpc.Client {
	if c.URL == "" {
		return nil
	}
	transport := httpAdapter.NewTransport(c.URL,
		httpAdapter.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Timeout)}),
	)
	return rpc.NewClient(rpc.WithCaller(transport), rpc.WithLogger(logger))
}

// appOptions translates the configuration into App options.
func appOptions(c *config.Config, logger *slog.Logger) []pagebuilder.Option {
	opts := []pagebuilder.Option{
		pagebuilder.WithPolling(time.Duration(c.Backend.PollInterval), c.Backend.MaxPolls),
		pagebuilder.WithMountBarrier(c.Widgets.MountRetries, time.Duration(c.Widgets.MountDelay)),
	}
	if client := newRPCClient(c.Backend, logger); client != nil {
		target := rpc.Target{ProjectID: c.Backend.ProjectID, WorkflowID: c.Backend.WorkflowID}
		opts = append(opts, pagebuilder.WithRPCClient(client, target))
	}
	return opts
}
