package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.Backend.PollInterval))
	assert.Equal(t, 50, cfg.Widgets.MountRetries)
}

func TestLoad_Formats(t *testing.T) {
	files := map[string]string{
		"config.toml": `
[server]
addr = ":9090"

[backend]
url = "http://localhost:3000/rpc"
poll_interval = "250ms"

[store]
driver = "redis"
redis_addr = "localhost:6379"
ttl = "1h"
`,
		"config.yaml": `
server:
  addr: ":9090"
backend:
  url: http://localhost:3000/rpc
  poll_interval: 250ms
store:
  driver: redis
  redis_addr: localhost:6379
  ttl: 1h
`,
		"config.json": `{
  "server": {"addr": ":9090"},
  "backend": {"url": "http://localhost:3000/rpc", "poll_interval": "250ms"},
  "store": {"driver": "redis", "redis_addr": "localhost:6379", "ttl": "1h"}
}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, ":9090", cfg.Server.Addr)
			assert.Equal(t, "http://localhost:3000/rpc", cfg.Backend.URL)
			assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.Backend.PollInterval))
			assert.Equal(t, StoreRedis, cfg.Store.Driver)
			assert.Equal(t, time.Hour, time.Duration(cfg.Store.TTL))
			assert.Equal(t, 600, cfg.Backend.MaxPolls, "unset values keep their default")
		})
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	err := Decode([]byte("addr=1"), ".ini", Default())
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnvOverrides(env(map[string]string{
		"PAGEBUILDER_ADDR":            ":7000",
		"PAGEBUILDER_STORE":           "file",
		"PAGEBUILDER_STORE_PATH":      "/tmp/sessions",
		"PAGEBUILDER_REDIS_DB":        "3",
		"PAGEBUILDER_MAX_POLLS":       "not-a-number",
		"PAGEBUILDER_ALLOWED_ORIGINS": "http://a,http://b",
		"PAGEBUILDER_LOG_LEVEL":       "",
	}))

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, StoreFile, cfg.Store.Driver)
	assert.Equal(t, "/tmp/sessions", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.Equal(t, 600, cfg.Backend.MaxPolls)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level, "empty values are ignored")
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		fields []string
	}{
		"Bad Backend URL": {
			mutate: func(c *Config) { c.Backend.URL = "localhost:3000" },
			fields: []string{"backend.url"},
		},
		"Unknown Driver": {
			mutate: func(c *Config) { c.Store.Driver = "postgres" },
			fields: []string{"store.driver"},
		},
		"Redis Without Address": {
			mutate: func(c *Config) { c.Store.Driver = StoreRedis },
			fields: []string{"store.redis_addr"},
		},
		"Several Errors": {
			mutate: func(c *Config) {
				c.Server.Addr = ""
				c.Logging.Level = "loud"
				c.Pages.Watch = true
			},
			fields: []string{"server.addr", "pages.dir", "logging.level"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var fields []string
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tc.fields, fields)
		})
	}
}
