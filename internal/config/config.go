package config

import (
	"os"
	"strings"
	"time"

	apperrors "github.com/drivegallery/drivegallery/internal/errors"
)

// Defaults for the HTTP surface and cache behavior.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = ":9090"

	// DefaultMetadataTTL bounds how long single-file metadata is cached.
	DefaultMetadataTTL = 5 * time.Minute

	// DefaultListingTTL bounds how long folder listing pages are cached.
	DefaultListingTTL = 5 * time.Minute

	// DefaultPageSize is the listing page size when the client does not ask
	// for one. MaxPageSize caps what the client may ask for.
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Credentials holds the Google service-account secret material. All fields
// are required; the Drive layer refuses to build a client from a partial set.
type Credentials struct {
	ProjectID    string
	PrivateKeyID string
	PrivateKey   string
	ClientEmail  string
	ClientID     string
}

// Validate checks that every secret field is present. A missing field is a
// deployment problem, not a runtime condition to retry.
func (c Credentials) Validate() error {
	missing := c.missingFields()
	if len(missing) > 0 {
		return apperrors.Newf(apperrors.KindConfiguration,
			"missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) missingFields() []string {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "GOOGLE_PROJECT_ID")
	}
	if c.PrivateKeyID == "" {
		missing = append(missing, "GOOGLE_PRIVATE_KEY_ID")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "GOOGLE_PRIVATE_KEY")
	}
	if c.ClientEmail == "" {
		missing = append(missing, "GOOGLE_CLIENT_EMAIL")
	}
	if c.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	return missing
}

// Config is the process configuration for the gallery server.
type Config struct {
	Credentials Credentials

	// FolderID is the Drive folder the gallery serves. Listing requests fail
	// with a configuration error when it is empty.
	FolderID string

	HTTPAddr    string
	MetricsAddr string

	MetadataTTL time.Duration
	ListingTTL  time.Duration
}

// Load reads configuration from the environment. It does not validate the
// credentials: per the external contract, missing secrets surface on first
// Drive use, matching lazy client construction.
func Load() Config {
	cfg := Config{
		Credentials: Credentials{
			ProjectID:    os.Getenv("GOOGLE_PROJECT_ID"),
			PrivateKeyID: os.Getenv("GOOGLE_PRIVATE_KEY_ID"),
			PrivateKey:   os.Getenv("GOOGLE_PRIVATE_KEY"),
			ClientEmail:  os.Getenv("GOOGLE_CLIENT_EMAIL"),
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		},
		FolderID:    os.Getenv("DRIVE_FOLDER_ID"),
		HTTPAddr:    DefaultHTTPAddr,
		MetricsAddr: DefaultMetricsAddr,
		MetadataTTL: DefaultMetadataTTL,
		ListingTTL:  DefaultListingTTL,
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if ttl := os.Getenv("METADATA_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.MetadataTTL = d
		}
	}
	if ttl := os.Getenv("LISTING_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.ListingTTL = d
		}
	}

	return cfg
}
