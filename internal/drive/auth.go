package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/drivegallery/drivegallery/internal/config"
	apperrors "github.com/drivegallery/drivegallery/internal/errors"
	"github.com/drivegallery/drivegallery/internal/logging"
)

// serviceTTL is how long a built Drive service is reused before a new one is
// constructed. Kept shorter than the one-hour Google access token lifetime so
// renewal happens proactively rather than on a mid-request expiry.
const serviceTTL = 45 * time.Minute

// serviceAccountKey is the JSON document Google's auth libraries expect,
// assembled from the individual environment-provided secrets.
type serviceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// Provider builds and memoizes an authenticated, read-only Drive service.
// It owns the secret material exclusively; the service handle never leaves
// the package.
type Provider struct {
	creds  config.Credentials
	logger *slog.Logger

	mu        sync.Mutex
	service   *drive.Service
	expiresAt time.Time

	// now and build are replaceable for tests.
	now   func() time.Time
	build func(ctx context.Context, creds config.Credentials) (*drive.Service, error)
}

// NewProvider creates a Provider for the given credentials. Construction is
// cheap and never fails; secrets are validated on first use.
func NewProvider(creds config.Credentials, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		creds:  creds,
		logger: logger,
		now:    time.Now,
		build:  buildService,
	}
}

// Service returns a valid Drive service, building one if the memoized handle
// is missing or past its expiry. A configuration error here is fatal and
// must not be retried without operator intervention.
func (p *Provider) Service(ctx context.Context) (*drive.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.service != nil && p.now().Before(p.expiresAt) {
		return p.service, nil
	}

	if err := p.creds.Validate(); err != nil {
		return nil, err
	}

	p.logger.Debug("building drive service",
		logging.Operation("drive.authorize"),
		"client_email", p.creds.ClientEmail,
		"private_key", logging.SanitizeSecret(p.creds.PrivateKey))

	service, err := p.build(ctx, p.creds)
	if err != nil {
		return nil, err
	}

	p.service = service
	p.expiresAt = p.now().Add(serviceTTL)
	return service, nil
}

// buildService assembles the service-account key document and constructs a
// Drive service restricted to the read-only scope.
func buildService(ctx context.Context, creds config.Credentials) (*drive.Service, error) {
	privateKey, err := normalizePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	key := serviceAccountKey{
		Type:                    "service_account",
		ProjectID:               creds.ProjectID,
		PrivateKeyID:            creds.PrivateKeyID,
		PrivateKey:              privateKey,
		ClientEmail:             creds.ClientEmail,
		ClientID:                creds.ClientID,
		AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
		TokenURI:                "https://oauth2.googleapis.com/token",
		AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
		ClientX509CertURL: fmt.Sprintf("https://www.googleapis.com/robot/v1/metadata/x509/%s",
			url.QueryEscape(creds.ClientEmail)),
	}

	data, err := json.Marshal(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "failed to encode service account key", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, drive.DriveReadonlyScope)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "failed to parse service account key", err)
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "failed to create Drive service", err)
	}

	return service, nil
}

// normalizePrivateKey converts literal "\n" escapes (how multi-line PEM keys
// survive env files) into real newlines and checks the result looks like a
// PEM private key.
func normalizePrivateKey(key string) (string, error) {
	normalized := strings.ReplaceAll(key, `\n`, "\n")
	if !strings.Contains(normalized, "-----BEGIN") || !strings.Contains(normalized, "PRIVATE KEY") {
		return "", apperrors.New(apperrors.KindConfiguration,
			"GOOGLE_PRIVATE_KEY is not a PEM-encoded private key")
	}
	return normalized, nil
}
