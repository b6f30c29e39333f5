// Package config loads the YAML runtime configuration: driver connections,
// the updater period, logging and the tag table.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rolfl/hmicore/driver"
	"github.com/rolfl/hmicore/tag"
)

// DefaultPeriod is the updater period when none is configured.
const DefaultPeriod = 100 * time.Millisecond

// Config is the root of the configuration file.
type Config struct {
	Updater     Updater             `yaml:"updater"`
	Log         Log                 `yaml:"log"`
	Connections []driver.Connection `yaml:"connections"`
	Tags        []Tag               `yaml:"tags"`
}

// Updater configures the background refresh of every connection.
type Updater struct {
	Period time.Duration `yaml:"period"`
	// Stats is how often cycle times are logged; zero disables it.
	Stats time.Duration `yaml:"stats"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Tag is one row of the tag table as written in the file, e.g.
//
//	- {id: 1, name: pump_on, connection: 1, type: BIT, address: Q0.0}
type Tag struct {
	ID         uint32 `yaml:"id"`
	Name       string `yaml:"name"`
	Connection uint32 `yaml:"connection"`
	Type       string `yaml:"type"`
	Address    string `yaml:"address"`
}

// LoadError reports a configuration file that cannot be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse decodes and validates a configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if cfg.Updater.Period == 0 {
		cfg.Updater.Period = DefaultPeriod
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// Validate checks what can be checked without opening any connection.
// Backend specific settings are checked by driver.NewManager.
func (c *Config) Validate() error {
	if c.Updater.Period < 0 {
		return &LoadError{Message: fmt.Sprintf("updater period %v is negative", c.Updater.Period)}
	}
	if _, err := c.Log.level(); err != nil {
		return &LoadError{Message: "invalid log level", Cause: err}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &LoadError{Message: fmt.Sprintf("unknown log format %q", c.Log.Format)}
	}

	conns := make(map[uint32]bool)
	for _, conn := range c.Connections {
		if conn.ID == 0 {
			return &LoadError{Message: fmt.Sprintf("connection %q: id must be greater than 0", conn.Name)}
		}
		if conns[conn.ID] {
			return &LoadError{Message: fmt.Sprintf("connection id %d", conn.ID), Cause: driver.ErrDuplicateConnection}
		}
		conns[conn.ID] = true
	}

	ids := make(map[uint32]bool)
	names := make(map[string]bool)
	for _, t := range c.Tags {
		if _, err := t.Tag(); err != nil {
			return &LoadError{Message: fmt.Sprintf("tag %d", t.ID), Cause: err}
		}
		if ids[t.ID] {
			return &LoadError{Message: fmt.Sprintf("tag id %d used twice", t.ID)}
		}
		if names[t.Name] {
			return &LoadError{Message: fmt.Sprintf("tag name %q used twice", t.Name)}
		}
		if !conns[t.Connection] {
			return &LoadError{Message: fmt.Sprintf("tag %q: no connection with id %d", t.Name, t.Connection)}
		}
		ids[t.ID] = true
		names[t.Name] = true
	}
	return nil
}

// Tag builds the tag described by the row.
func (t Tag) Tag() (tag.Tag, error) {
	typ, err := tag.ParseType(t.Type)
	if err != nil {
		return tag.Tag{}, err
	}
	addr, err := tag.ParseAddress(t.Address)
	if err != nil {
		return tag.Tag{}, err
	}
	return tag.New(t.ID, t.Connection, t.Name, typ, addr)
}

// TagTable builds every configured tag, keyed by name.
func (c *Config) TagTable() (map[string]tag.Tag, error) {
	tags := make(map[string]tag.Tag, len(c.Tags))
	for _, row := range c.Tags {
		t, err := row.Tag()
		if err != nil {
			return nil, err
		}
		tags[row.Name] = t
	}
	return tags, nil
}

func (l Log) level() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// Logger builds the logger described by the log section.
func (l Log) Logger() *slog.Logger {
	level, err := l.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
