package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Duration is a time.Duration written as a string such as "500ms" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type BackendConfig struct {
	URL               string   `json:"url"`
	Token             string   `json:"token"`
	RestartBackoff    Duration `json:"restartBackoff"`
	MaxRestartBackoff Duration `json:"maxRestartBackoff"`
	MaxRestarts       int      `json:"maxRestarts"`
	PreloadLead       Duration `json:"preloadLead"`
}

type IPCConfig struct {
	Enabled bool   `json:"enabled"`
	Socket  string `json:"socket"` // defaults to CachePath("tunedeck.sock")
}

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Command string `json:"command"` // overrides notify-send / osascript
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type TLSConfig struct {
	Mode     string `json:"mode"` // "self-signed", "manual", or "" (disabled)
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
	CacheDir string `json:"cacheDir"` // for self-signed; defaults to ~/.config/tunedeck/certs
}

type RemoteConfig struct {
	Enabled      bool      `json:"enabled"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	JWTSecret    string    `json:"jwtSecret"`
	TokenTTL     Duration  `json:"tokenTTL"`
	Announce     bool      `json:"announce"` // advertise over DNS-SD
	TLS          TLSConfig `json:"tls"`
}

type Config struct {
	InitialScreen string              `json:"initialScreen"`
	Theme         map[string]string   `json:"theme"`
	Keybindings   map[string]string   `json:"keybindings"`
	Backend       BackendConfig       `json:"backend"`
	IPC           IPCConfig           `json:"ipc"`
	Remote        RemoteConfig        `json:"remote"`
	Notifications NotificationsConfig `json:"notifications"`
	LogDir        string              `json:"logDir"`
	LogLevel      string              `json:"logLevel"`
	VolumeStep    int                 `json:"volumeStep"`
}

func Defaults() Config {
	return Config{
		InitialScreen: "library",
		Backend: BackendConfig{
			URL:               "http://127.0.0.1:3678",
			RestartBackoff:    Duration(500 * time.Millisecond),
			MaxRestartBackoff: Duration(30 * time.Second),
			PreloadLead:       Duration(10 * time.Second),
		},
		IPC: IPCConfig{Enabled: true},
		Remote: RemoteConfig{
			Host:     "0.0.0.0",
			Port:     8672,
			TokenTTL: Duration(24 * time.Hour),
			Announce: true,
		},
		LogDir:     filepath.Join(Dir(), "logs"),
		LogLevel:   "info",
		VolumeStep: 5,
	}
}

// Dir is the configuration directory, ~/.config/tunedeck.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tunedeck")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tunedeck")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// CachePath resolves name inside the user cache directory, creating the
// directory if needed.
func CachePath(name string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "tunedeck")
	os.MkdirAll(dir, 0700)
	return filepath.Join(dir, name)
}

// SocketPath is where the control socket lives.
func (c Config) SocketPath() string {
	if c.IPC.Socket != "" {
		return c.IPC.Socket
	}
	return CachePath("tunedeck.sock")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories. The file is private
// because it may hold credentials.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// EnsureJWTSecret generates and persists a signing secret for the remote
// server if the config has none.
func EnsureJWTSecret(path string, cfg *Config) error {
	if cfg.Remote.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	cfg.Remote.JWTSecret = hex.EncodeToString(b)
	return Save(path, *cfg)
}
