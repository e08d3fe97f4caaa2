// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// telegram bot
	BotToken string `yaml:"bot_token"`

	// wizard
	SessionDir string `yaml:"session_dir"`

	// media
	DownloadDir    string `yaml:"download_dir"`
	YtdlpPath      string `yaml:"ytdlp_path"`
	CookiesPath    string `yaml:"cookies_path"`
	MaxFileSize    int64  `yaml:"max_file_size"`
	MaxDurationS   int    `yaml:"max_duration_seconds"`
	MediaWorkers   int    `yaml:"media_workers"`
	VideoMaxHeight int    `yaml:"video_max_height"`

	// dispatch
	HandlerWorkers int `yaml:"handler_workers"`

	// stats
	StatsDB string `yaml:"stats_db"`

	// ops server
	HTTPPort int `yaml:"http_port"`

	// logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads configuration from environment variables with sensible
// defaults, then applies overrides from the YAML file named by
// CONFIG_FILE, if any.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:       getEnv("BOT_TOKEN", ""),
		SessionDir:     getEnv("SESSION_DIR", "./sessions"),
		DownloadDir:    getEnv("DOWNLOAD_DIR", "./downloads"),
		YtdlpPath:      getEnv("YTDLP_PATH", "yt-dlp"),
		CookiesPath:    getEnv("YT_COOKIES_PATH", ""),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 2<<30),
		MaxDurationS:   getEnvInt("MAX_DURATION_SECONDS", 7200),
		MediaWorkers:   getEnvInt("MEDIA_WORKERS", 8),
		VideoMaxHeight: getEnvInt("VIDEO_MAX_HEIGHT", 1080),
		HandlerWorkers: getEnvInt("HANDLER_WORKERS", 32),
		StatsDB:        getEnv("STATS_DB", "./smartgen.db"),
		HTTPPort:       getEnvInt("HTTP_PORT", 3100),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", "./logs/app.log"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	return nil
}

// applyFile overlays non-zero values from a YAML file onto the config.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.BotToken != "" {
		c.BotToken = overlay.BotToken
	}
	if overlay.SessionDir != "" {
		c.SessionDir = overlay.SessionDir
	}
	if overlay.DownloadDir != "" {
		c.DownloadDir = overlay.DownloadDir
	}
	if overlay.YtdlpPath != "" {
		c.YtdlpPath = overlay.YtdlpPath
	}
	if overlay.CookiesPath != "" {
		c.CookiesPath = overlay.CookiesPath
	}
	if overlay.MaxFileSize != 0 {
		c.MaxFileSize = overlay.MaxFileSize
	}
	if overlay.MaxDurationS != 0 {
		c.MaxDurationS = overlay.MaxDurationS
	}
	if overlay.MediaWorkers != 0 {
		c.MediaWorkers = overlay.MediaWorkers
	}
	if overlay.VideoMaxHeight != 0 {
		c.VideoMaxHeight = overlay.VideoMaxHeight
	}
	if overlay.HandlerWorkers != 0 {
		c.HandlerWorkers = overlay.HandlerWorkers
	}
	if overlay.StatsDB != "" {
		c.StatsDB = overlay.StatsDB
	}
	if overlay.HTTPPort != 0 {
		c.HTTPPort = overlay.HTTPPort
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.LogFile != "" {
		c.LogFile = overlay.LogFile
	}

	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
