package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddr = "127.0.0.1:3334"
	DefaultPublicURL  = "http://127.0.0.1:3334"

	DefaultMaxUploadBytes int64 = 100 * 1024 * 1024
	DefaultRetention            = 24 * time.Hour
	DefaultMaxEventAge          = 300 * time.Second

	DefaultStoreBackend = "local"

	configFileName  = ".petal.toml"
	configDirEnvKey = "PETAL_CONFIG_DIR"

	listenAddrEnvKey        = "PETAL_LISTEN_ADDR"
	publicURLEnvKey         = "PETAL_PUBLIC_URL"
	maxUploadBytesEnvKey    = "PETAL_MAX_SIZE_BYTES"
	allowedMediaTypesEnvKey = "PETAL_ALLOWED_MEDIA_TYPES"
	allowedPubKeysEnvKey    = "PETAL_ALLOWED_PUBKEYS"
	storeBackendEnvKey      = "PETAL_STORE"
	storePathEnvKey         = "PETAL_STORE_PATH"
	adminTokenEnvKey        = "PETAL_ADMIN_TOKEN"
)

var pubkeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// UploadConfig bounds what the admission engine accepts.
type UploadConfig struct {
	MaxSizeBytes      int64    `toml:"max_size_bytes"`
	AllowedMediaTypes []string `toml:"allowed_media_types"`
	RetentionHours    int      `toml:"retention_hours"`
}

// AuthConfig configures authorization event verification.
type AuthConfig struct {
	AllowedPubKeys     []string `toml:"allowed_pubkeys"`
	MaxEventAgeSeconds int      `toml:"max_event_age_seconds"`
	AdminToken         string   `toml:"admin_token"`
}

// StoreConfig selects and configures the object store backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // local | sqlite | s3
	Path    string `toml:"path"`    // local root or sqlite file

	S3Endpoint  string `toml:"s3_endpoint"`
	S3Bucket    string `toml:"s3_bucket"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Region    string `toml:"s3_region"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`
}

// Config defines runtime configuration for petal.
type Config struct {
	ListenAddr string       `toml:"listen_addr"`
	PublicURL  string       `toml:"public_url"`
	Upload     UploadConfig `toml:"upload"`
	Auth       AuthConfig   `toml:"auth"`
	Store      StoreConfig  `toml:"store"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		ListenAddr: DefaultListenAddr,
		PublicURL:  DefaultPublicURL,
		Upload: UploadConfig{
			MaxSizeBytes:      DefaultMaxUploadBytes,
			AllowedMediaTypes: nil,
			RetentionHours:    int(DefaultRetention / time.Hour),
		},
		Auth: AuthConfig{
			AllowedPubKeys:     nil,
			MaxEventAgeSeconds: int(DefaultMaxEventAge / time.Second),
		},
		Store: StoreConfig{
			Backend: DefaultStoreBackend,
		},
	}
}

// Retention returns the blob retention window.
func (c *Config) Retention() time.Duration {
	if c.Upload.RetentionHours <= 0 {
		return DefaultRetention
	}
	return time.Duration(c.Upload.RetentionHours) * time.Hour
}

// MaxEventAge returns the authorization event freshness window.
func (c *Config) MaxEventAge() time.Duration {
	if c.Auth.MaxEventAgeSeconds <= 0 {
		return DefaultMaxEventAge
	}
	return time.Duration(c.Auth.MaxEventAgeSeconds) * time.Second
}

// Path returns the config file location, honoring PETAL_CONFIG_DIR.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// Load reads config from the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if loadErr := loadFileIfExists(path, &cfg); loadErr != nil {
			return nil, loadErr
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFileIfExists(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(listenAddrEnvKey)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(publicURLEnvKey)); v != "" {
		cfg.PublicURL = v
	}
	if v := strings.TrimSpace(os.Getenv(maxUploadBytesEnvKey)); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			cfg.Upload.MaxSizeBytes = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv(allowedMediaTypesEnvKey)); v != "" {
		cfg.Upload.AllowedMediaTypes = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv(allowedPubKeysEnvKey)); v != "" {
		cfg.Auth.AllowedPubKeys = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv(storeBackendEnvKey)); v != "" {
		cfg.Store.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv(storePathEnvKey)); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(adminTokenEnvKey)); v != "" {
		cfg.Auth.AdminToken = v
	}
}

func (c *Config) normalize() error {
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if c.PublicURL == "" {
		c.PublicURL = DefaultPublicURL
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Upload.MaxSizeBytes <= 0 {
		c.Upload.MaxSizeBytes = DefaultMaxUploadBytes
	}
	c.Upload.AllowedMediaTypes = normalizeMediaTypes(c.Upload.AllowedMediaTypes)

	pubkeys, err := normalizePubKeys(c.Auth.AllowedPubKeys)
	if err != nil {
		return err
	}
	c.Auth.AllowedPubKeys = pubkeys

	switch c.Store.Backend {
	case "", "local":
		c.Store.Backend = "local"
	case "sqlite", "s3":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

func normalizeMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizePubKeys(rawValues []string) ([]string, error) {
	if len(rawValues) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		pk := strings.ToLower(strings.TrimSpace(raw))
		if pk == "" {
			continue
		}
		if !pubkeyPattern.MatchString(pk) {
			return nil, fmt.Errorf("invalid allowed pubkey %q: want 64 lowercase hex chars", raw)
		}
		if _, ok := seen[pk]; ok {
			continue
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
