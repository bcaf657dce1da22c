// Package secrets copies provider keys and tokens from a Vault KV mount
// into the process environment before configuration is loaded.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
)

// VaultConfig selects the secret to read. It is read from VAULT_* variables
// because it has to exist before the rest of the configuration.
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set.
	Overwrite bool
}

// VaultResult counts what was exported.
type VaultResult struct {
	Enabled bool     `json:"enabled"`
	Path    string   `json:"path,omitempty"`
	Loaded  []string `json:"loaded,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

// ErrIncomplete is returned when Vault is enabled without an address,
// token or path.
var ErrIncomplete = errors.New("vault enabled but VAULT_ADDR, VAULT_TOKEN or VAULT_PATH is empty")

// ConfigFromEnv reads VAULT_ENABLED, VAULT_ADDR, VAULT_TOKEN, VAULT_NAMESPACE,
// VAULT_MOUNT, VAULT_PATH, VAULT_KV_VERSION, VAULT_TIMEOUT_MS and
// VAULT_OVERWRITE.
func ConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     os.Getenv("VAULT_MOUNT"),
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil && (v == 1 || v == 2) {
		cfg.KVVersion = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}
	return cfg
}

// URL is the read endpoint for the configured engine version.
func (c VaultConfig) URL() (string, error) {
	addr := strings.TrimRight(c.Addr, "/")
	mount := strings.Trim(c.Mount, "/")
	path := strings.Trim(c.Path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", ErrIncomplete
	}
	if c.KVVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

type kvResponse struct {
	Data map[string]any `json:"data"`
}

// Apply fetches the secret and exports every key as an environment
// variable. A disabled config is a no-op.
func Apply(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	res := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return res, nil
	}
	if cfg.Token == "" {
		return res, ErrIncomplete
	}
	url, err := cfg.URL()
	if err != nil {
		return res, err
	}

	client := httpclient.New(httpclient.Options{Timeout: cfg.Timeout, MaxAttempts: 2})
	req := client.R().
		SetContext(ctx).
		SetHeader("X-Vault-Token", cfg.Token).
		SetResult(&kvResponse{})
	if cfg.Namespace != "" {
		req.SetHeader("X-Vault-Namespace", cfg.Namespace)
	}
	resp, err := req.Get(url)
	if err := httpclient.CheckResponse("vault", resp, err); err != nil {
		return res, err
	}

	data, err := extract(resp, cfg.KVVersion)
	if err != nil {
		return res, err
	}
	for key, value := range data {
		if !cfg.Overwrite && os.Getenv(key) != "" {
			res.Skipped = append(res.Skipped, key)
			continue
		}
		if err := os.Setenv(key, stringify(value)); err != nil {
			return res, fmt.Errorf("export %s: %w", key, err)
		}
		res.Loaded = append(res.Loaded, key)
	}
	return res, nil
}

// KV v2 nests the secret one level deeper than v1.
func extract(resp *resty.Response, kvVersion int) (map[string]any, error) {
	body, ok := resp.Result().(*kvResponse)
	if !ok || body.Data == nil {
		return nil, fmt.Errorf("vault response for KV v%d has no data", kvVersion)
	}
	if kvVersion == 1 {
		return body.Data, nil
	}
	inner, ok := body.Data["data"].(map[string]any)
	if !ok {
		return nil, errors.New("vault response for KV v2 has no data.data")
	}
	return inner, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
