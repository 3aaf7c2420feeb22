package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DataDir           string  `envconfig:"DATA_DIR" default:"./data"`
	DatabasePath      string  `envconfig:"DATABASE_PATH"` // "memory" for a volatile store
	PageID            string  `envconfig:"PAGE_ID" default:"default"`
	DebounceMS        int     `envconfig:"DEBOUNCE_MS" default:"1000"`
	DocumentPadding   int     `envconfig:"DOCUMENT_PADDING" default:"50"`
	ThumbWidth        int     `envconfig:"THUMB_WIDTH" default:"500"`
	QueueSize         int     `envconfig:"QUEUE_SIZE" default:"64"`
	EraserRadius      float32 `envconfig:"ERASER_RADIUS" default:"6"`
	SimplifyTolerance float32 `envconfig:"SIMPLIFY_TOLERANCE" default:"0.5"`
	ToolbarHeight     int     `envconfig:"TOOLBAR_HEIGHT" default:"40"`
	ViewWidth         int     `envconfig:"VIEW_WIDTH" default:"1000"`
	ViewHeight        int     `envconfig:"VIEW_HEIGHT" default:"800"`
	PenListenAddr     string  `envconfig:"PEN_LISTEN_ADDR" default:":8787"`
	MDNS              bool    `envconfig:"MDNS" default:"true"`
	LogLevel          string  `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads INKBOARD_* variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("inkboard", &cfg); err != nil {
		return nil, err
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "inkboard.db")
	}
	return &cfg, nil
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
