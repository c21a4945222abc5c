package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultCacheDir         = ".cache"
	defaultStoreLookupDelay = 300 * time.Millisecond
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	Cache       CacheConfig
	Jobs        JobsConfig
	Remittance  RemittanceConfig
	StoreLookup StoreLookupConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for identity verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig names the bucket holding product images and remittance proofs.
type StorageConfig struct {
	Bucket        string
	PublicBaseURL string
}

// CacheConfig locates the local snapshot cache.
type CacheConfig struct {
	Dir string
}

// JobsConfig configures the Pub/Sub topic used for order notification jobs.
type JobsConfig struct {
	ProjectID       string
	OrderTopic      string
	PublishDisabled bool
}

// RemittanceConfig carries the bank transfer details surfaced at checkout.
// Values may be secret:// references resolved through the secrets fetcher.
type RemittanceConfig struct {
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
}

// StoreLookupConfig configures the 7-11 store search dependency.
type StoreLookupConfig struct {
	EndpointURL string
	Debounce    time.Duration
}

// Load reads the optional .env file and assembles configuration from the environment.
func Load() (Config, error) {
	if err := loadEnvFile(envFilePath()); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", defaultPort),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    getEnv("FIRESTORE_PROJECT_ID", getEnv("FIREBASE_PROJECT_ID", "")),
			EmulatorHost: getEnv("FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("STORAGE_BUCKET", ""),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
		},
		Cache: CacheConfig{
			Dir: getEnv("CACHE_DIR", defaultCacheDir),
		},
		Jobs: JobsConfig{
			ProjectID:       getEnv("JOBS_PROJECT_ID", getEnv("FIREBASE_PROJECT_ID", "")),
			OrderTopic:      getEnv("JOBS_ORDER_TOPIC", ""),
			PublishDisabled: getBool("JOBS_PUBLISH_DISABLED", false),
		},
		Remittance: RemittanceConfig{
			BankName:      getEnv("REMITTANCE_BANK_NAME", ""),
			BankCode:      getEnv("REMITTANCE_BANK_CODE", ""),
			AccountNumber: getEnv("REMITTANCE_ACCOUNT_NUMBER", ""),
			AccountName:   getEnv("REMITTANCE_ACCOUNT_NAME", ""),
		},
		StoreLookup: StoreLookupConfig{
			EndpointURL: getEnv("STORE_LOOKUP_URL", ""),
			Debounce:    getDuration("STORE_LOOKUP_DEBOUNCE", defaultStoreLookupDelay),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("config: server port is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("config: server timeouts must be positive")
	}
	if c.StoreLookup.Debounce < 0 {
		return errors.New("config: store lookup debounce must not be negative")
	}
	return nil
}

func envFilePath() string {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		return path
	}
	return defaultEnvFile
}

// loadEnvFile loads KEY=VALUE pairs without overriding variables already present in the
// process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
