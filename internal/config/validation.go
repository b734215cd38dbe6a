package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Backend.URL != "" {
		if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("backend.url", "must be an http(s) URL, got %q", c.Backend.URL)
		}
	}
	if c.Backend.PollInterval < 0 {
		add("backend.poll_interval", "must not be negative")
	}
	if c.Backend.MaxPolls < 0 {
		add("backend.max_polls", "must not be negative")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile:
		if c.Store.Path == "" {
			add("store.path", "required by the file store")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			add("store.redis_addr", "required by the redis store")
		}
		if c.Store.TTL < 0 {
			add("store.ttl", "must not be negative")
		}
	default:
		add("store.driver", "unknown driver %q (want %s, %s or %s)", c.Store.Driver, StoreMemory, StoreFile, StoreRedis)
	}

	if c.Pages.Watch && c.Pages.Dir == "" {
		add("pages.dir", "required to watch pages")
	}
	if c.Widgets.MountRetries < 0 {
		add("widgets.mount_retries", "must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format", "unknown format %q", c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
