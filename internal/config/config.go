package config

import (
	"fmt"
	"strings"
	"time"

	sharedauth "github.com/trackers-salat/tracker-service/internal/shared/auth"
	"github.com/trackers-salat/tracker-service/internal/shared/envconfig"
)

// Config encapsulates the runtime configuration for the tracker service.
type Config struct {
	Port         string `validate:"required,numeric"`
	GCPProjectID string
	DataStore    DataStore `validate:"required,oneof=memory firestore"`
	Auth         AuthConfig
	Firestore    FirestoreConfig
	Storage      StorageConfig
	// Timezone names the location that defines day boundaries for period windows.
	Timezone string `validate:"required"`
	// BadgesFile optionally replaces the built-in badge table.
	BadgesFile string
	// RequestTimeoutSeconds bounds each HTTP request, live streams included.
	RequestTimeoutSeconds int `validate:"gt=0"`

	Location *time.Location `validate:"-"`
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps records in-memory (useful for local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores records in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
)

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode     sharedauth.Mode `validate:"required,oneof=firebase noop"`
	JWKSURL  string
	Audience string
	Issuer   string
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
	Database     string
}

// StorageConfig contains Cloud Storage settings. An empty bucket disables photo uploads.
type StorageConfig struct {
	Bucket string
}

// Load reads environment variables into Config with validation.
func Load() (Config, error) {
	timeout, err := envconfig.GetInt("REQUEST_TIMEOUT_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Auth: AuthConfig{
			Mode:     sharedauth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(sharedauth.ModeNoop)))),
			JWKSURL:  envconfig.Get("AUTH_JWKS_URL", ""),
			Audience: envconfig.Get("AUTH_AUDIENCE", ""),
			Issuer:   envconfig.Get("AUTH_ISSUER", ""),
		},
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
			Database:     envconfig.Get("FIRESTORE_DATABASE", "(default)"),
		},
		Storage: StorageConfig{
			Bucket: envconfig.Get("PHOTO_BUCKET", ""),
		},
		Timezone:   envconfig.Get("TRACKER_TIMEZONE", "Local"),
		BadgesFile: envconfig.Get("BADGES_FILE", ""),

		RequestTimeoutSeconds: timeout,
	}

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DataStore == DataStoreFirestore && cfg.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required when DATASTORE=firestore")
	}

	if cfg.Auth.Mode == sharedauth.ModeFirebase {
		if cfg.GCPProjectID == "" && (cfg.Auth.Audience == "" || cfg.Auth.Issuer == "") {
			return fmt.Errorf("GCP_PROJECT_ID or AUTH_AUDIENCE and AUTH_ISSUER are required when AUTH_MODE=firebase")
		}
		if cfg.Auth.JWKSURL == "" {
			cfg.Auth.JWKSURL = sharedauth.DefaultFirebaseJWKSURL
		}
		// Firebase ID tokens carry the project as audience and a securetoken issuer.
		if cfg.Auth.Audience == "" {
			cfg.Auth.Audience = cfg.GCPProjectID
		}
		if cfg.Auth.Issuer == "" {
			cfg.Auth.Issuer = "https://securetoken.google.com/" + cfg.GCPProjectID
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("TRACKER_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return nil
}

// RequestTimeout returns RequestTimeoutSeconds as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
