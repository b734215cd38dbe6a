package config

import "time"

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Backend: BackendConfig{
			Timeout:      Duration(30 * time.Second),
			PollInterval: Duration(100 * time.Millisecond),
			MaxPolls:     600,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
			Path:   ".pagebuilder/sessions",
			Prefix: "pagebuilder:session:",
		},
		Pages: PagesConfig{
			Debounce: Duration(200 * time.Millisecond),
		},
		Widgets: WidgetsConfig{
			MountRetries: 50,
			MountDelay:   Duration(100 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
