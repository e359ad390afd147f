package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ServiceAccountKey represents the structure of a Google Cloud service
// account key, as stored verbatim on a Target.
type ServiceAccountKey struct {
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

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// TargetCredentialProvider resolves an oauth2.TokenSource for a target's
// stored service-account JSON. Credentials are parsed per target, not per
// process: each dispatch may be routed to a different Google Cloud
// project, so there is no single ADC identity to fall back to.
type TargetCredentialProvider interface {
	TokenSource(ctx context.Context, serviceAccountKeyJSON string) (oauth2.TokenSource, error)
	AccessToken(ctx context.Context, serviceAccountKeyJSON string) (string, error)
}

// cachingCredentialProvider builds a Google oauth2.TokenSource from a
// target's raw service-account JSON and caches it by content hash, since
// JWT config parsing is not free and a target's credential rarely changes
// between dispatches.
type cachingCredentialProvider struct {
	mu    sync.RWMutex
	cache map[string]oauth2.TokenSource
}

// NewTargetCredentialProvider constructs a credential provider with an
// empty cache.
func NewTargetCredentialProvider() TargetCredentialProvider {
	return &cachingCredentialProvider{cache: make(map[string]oauth2.TokenSource)}
}

func (p *cachingCredentialProvider) TokenSource(ctx context.Context, serviceAccountKeyJSON string) (oauth2.TokenSource, error) {
	key := cacheKey(serviceAccountKeyJSON)

	p.mu.RLock()
	if ts, ok := p.cache[key]; ok {
		p.mu.RUnlock()
		return ts, nil
	}
	p.mu.RUnlock()

	if err := ValidateServiceAccountKeyJSON(serviceAccountKeyJSON); err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, []byte(serviceAccountKeyJSON), cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials from service account key: %w", err)
	}

	p.mu.Lock()
	p.cache[key] = creds.TokenSource
	p.mu.Unlock()

	return creds.TokenSource, nil
}

func (p *cachingCredentialProvider) AccessToken(ctx context.Context, serviceAccountKeyJSON string) (string, error) {
	ts, err := p.TokenSource(ctx, serviceAccountKeyJSON)
	if err != nil {
		return "", err
	}
	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	if !token.Valid() {
		return "", fmt.Errorf("token is invalid or expired")
	}
	return token.AccessToken, nil
}

func cacheKey(serviceAccountKeyJSON string) string {
	sum := sha256.Sum256([]byte(serviceAccountKeyJSON))
	return hex.EncodeToString(sum[:])
}

// ValidateServiceAccountKeyJSON fully validates a service account key's
// required fields. TokenSource runs it before parsing a credential it has
// not cached yet.
func ValidateServiceAccountKeyJSON(serviceAccountKeyJSON string) error {
	var key ServiceAccountKey
	if err := json.Unmarshal([]byte(serviceAccountKeyJSON), &key); err != nil {
		return fmt.Errorf("invalid service account key JSON: %w", err)
	}
	return validateServiceAccountKey(&key)
}

// HasMinimalCredentialFields implements the lighter §4.3 check performed on
// every dispatch: missing client_email or private_key is a ConfigurationError.
// The rest of the key is checked by ValidateServiceAccountKeyJSON when
// TokenSource first parses it.
func HasMinimalCredentialFields(serviceAccountKeyJSON string) bool {
	var key ServiceAccountKey
	if err := json.Unmarshal([]byte(serviceAccountKeyJSON), &key); err != nil {
		return false
	}
	return key.ClientEmail != "" && key.PrivateKey != ""
}

// validateServiceAccountKey validates required fields in service account key
func validateServiceAccountKey(key *ServiceAccountKey) error {
	if key.Type != "service_account" {
		return fmt.Errorf("invalid service account type: %s (expected 'service_account')", key.Type)
	}

	if key.ProjectID == "" {
		return fmt.Errorf("service account key missing required field: project_id")
	}

	if key.PrivateKeyID == "" {
		return fmt.Errorf("service account key missing required field: private_key_id")
	}

	if key.PrivateKey == "" {
		return fmt.Errorf("service account key missing required field: private_key")
	}

	if key.ClientEmail == "" {
		return fmt.Errorf("service account key missing required field: client_email")
	}

	return nil
}
