package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_Defaults(t *testing.T) {
	os.Unsetenv("DOWNLOAD_DIR")
	os.Unsetenv("MAX_FILE_SIZE")
	os.Unsetenv("CONFIG_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DownloadDir != "./downloads" {
		t.Errorf("DownloadDir = %q, want %q", cfg.DownloadDir, "./downloads")
	}
	if cfg.MaxFileSize != 2<<30 {
		t.Errorf("MaxFileSize = %d, want %d", cfg.MaxFileSize, int64(2<<30))
	}
	if cfg.MaxDurationS != 7200 {
		t.Errorf("MaxDurationS = %d, want 7200", cfg.MaxDurationS)
	}
}

func TestConfig_FromEnv(t *testing.T) {
	os.Setenv("DOWNLOAD_DIR", "/tmp/dl")
	os.Setenv("HTTP_PORT", "9090")
	defer os.Unsetenv("DOWNLOAD_DIR")
	defer os.Unsetenv("HTTP_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DownloadDir != "/tmp/dl" {
		t.Errorf("DownloadDir = %q, want /tmp/dl", cfg.DownloadDir)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
}

func TestConfig_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "bot_token: file-token\nhttp_port: 8088\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("CONFIG_FILE", path)
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("CONFIG_FILE")
	defer os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// file wins over env defaults, env survives where file is silent
	if cfg.BotToken != "file-token" {
		t.Errorf("BotToken = %q, want file-token", cfg.BotToken)
	}
	if cfg.HTTPPort != 8088 {
		t.Errorf("HTTPPort = %d, want 8088", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without a bot token")
	}

	cfg.BotToken = "123:abc"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
