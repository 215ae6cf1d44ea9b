package lakefs

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deepmap/oapi-codegen/pkg/securityprovider"
	"github.com/treeverse/lakefs/pkg/api"

	"github.com/kohakuhub/server/internal/shared/config"
)

const apiPath = "/api/v1"

// NewClient builds a lakeFS API client authenticated with the configured
// key pair. All requests go through a retrying circuit-breaker transport
// so a flapping lakeFS does not take the hub down with it.
func NewClient(cfg *config.LakeFSConfig) (*api.ClientWithResponses, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lakefs config is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("lakefs endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("lakefs credentials are required")
	}

	basicAuth, err := securityprovider.NewSecurityProviderBasicAuth(cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("build basic auth provider: %w", err)
	}

	httpClient := &http.Client{
		Transport: newResilientTransport(http.DefaultTransport),
		Timeout:   90 * time.Second,
	}

	client, err := api.NewClientWithResponses(
		normalizeEndpoint(cfg.Endpoint),
		api.WithHTTPClient(httpClient),
		api.WithRequestEditorFn(basicAuth.Intercept),
	)
	if err != nil {
		return nil, fmt.Errorf("build lakefs client: %w", err)
	}
	return client, nil
}

// normalizeEndpoint appends the API base path when the configured
// endpoint is just the server address.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, apiPath) {
		return endpoint
	}
	return endpoint + apiPath
}
