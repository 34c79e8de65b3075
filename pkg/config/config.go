package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	ExecutorActor = "actor"
	ExecutorSync  = "sync"
)

var _defaultConfig = Config{
	Server: ServerConfig{
		Listen:      "127.0.0.1:2181",
		AdminListen: "127.0.0.1:8080",
		ServerID:    1,
	},
	Session: SessionConfig{
		MinTimeoutMs: 4_000,
		MaxTimeoutMs: 40_000,
		TickMs:       2_000,
	},
	Core: CoreConfig{
		InitialZxid: 0,
		Executor:    ExecutorActor,
		MailboxSize: 1024,
		Journal:     false,
	},
	Log: LogConfig{
		Level: "info",
	},
}

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Session SessionConfig `toml:"session"`
	Core    CoreConfig    `toml:"core"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	// Listen is the address of the gRPC endpoint.
	Listen string `toml:"listen"`
	// AdminListen is the address of the HTTP diagnostics endpoint. Empty disables it.
	AdminListen string `toml:"admin_listen"`
	// ServerID goes into the top byte of every session id.
	ServerID int64 `toml:"server_id"`
}

type SessionConfig struct {
	MinTimeoutMs int64 `toml:"min_timeout_ms"`
	MaxTimeoutMs int64 `toml:"max_timeout_ms"`
	// TickMs is how often expired sessions are looked for.
	TickMs int64 `toml:"tick_ms"`
}

type CoreConfig struct {
	// InitialZxid is the last zxid the sequencer considers handed out.
	InitialZxid int64 `toml:"initial_zxid"`
	// Executor is either "actor" or "sync".
	Executor    string `toml:"executor"`
	MailboxSize int    `toml:"mailbox_size"`
	// Journal keeps every applied transaction in memory and serves it on the admin endpoint. It
	// is never truncated, so it grows for as long as the server runs.
	Journal bool `toml:"journal"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a copy of the default configuration.
func Default() *Config {
	c := _defaultConfig
	return &c
}

// Load reads the file at path on top of the defaults. The LOG_LEVEL environment variable, when
// set, overrides the log level of the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func WriteDefault(w io.Writer) error {
	data, err := toml.Marshal(_defaultConfig)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server.listen is empty")
	}
	if c.Server.ServerID < 0 || c.Server.ServerID > 0xFF {
		return fmt.Errorf("server.server_id %d does not fit in one byte", c.Server.ServerID)
	}
	if c.Session.MinTimeoutMs <= 0 || c.Session.MaxTimeoutMs < c.Session.MinTimeoutMs {
		return fmt.Errorf("session timeouts must satisfy 0 < min (%d) <= max (%d)", c.Session.MinTimeoutMs, c.Session.MaxTimeoutMs)
	}
	if c.Session.TickMs <= 0 {
		return errors.New("session.tick_ms must be positive")
	}
	if c.Core.InitialZxid < 0 {
		return errors.New("core.initial_zxid must not be negative")
	}
	switch c.Core.Executor {
	case ExecutorActor:
		if c.Core.MailboxSize <= 0 {
			return errors.New("core.mailbox_size must be positive for the actor executor")
		}
	case ExecutorSync:
	default:
		return fmt.Errorf("unknown core.executor %q", c.Core.Executor)
	}
	return nil
}
