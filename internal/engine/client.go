// Package engine adapts build and push requests onto the Docker Engine API.
//
// Every operation issues exactly one request, then blocks on the engine's
// JSON message stream until it reports an error or reaches EOF.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
)

// DefaultURL is the engine endpoint used when no URL is configured
const DefaultURL = "tcp://localhost:2375"

// dockerHubIndex is the auth key the engine expects for docker.io
const dockerHubIndex = "https://index.docker.io/v1/"

// EngineAPI is the subset of the Docker client the adapter drives
type EngineAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	Close() error
}

// EngineFactory constructs an engine client for an endpoint
type EngineFactory func(endpoint Endpoint) (EngineAPI, error)

// Credentials holds registry credentials sent with build and push requests
type Credentials struct {
	Username string
	Password string
	Email    string
}

// Endpoint holds engine connection parameters
type Endpoint struct {
	URL         string       // Engine URL; empty means "from environment"
	Credentials *Credentials // nil when no user was configured
	APIVersion  string       // Pinned API version; empty negotiates
}

// HasCredentials reports whether the endpoint carries a registry user
func (e Endpoint) HasCredentials() bool {
	return e.Credentials != nil && e.Credentials.Username != ""
}

// NewDockerEngine creates a Docker client for the endpoint
func NewDockerEngine(endpoint Endpoint) (EngineAPI, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if endpoint.URL == "" {
		opts = append(opts, client.FromEnv)
	} else {
		opts = append(opts, client.WithHost(endpoint.URL))
	}
	if endpoint.APIVersion != "" {
		opts = append(opts, client.WithVersion(endpoint.APIVersion))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// authConfig returns the registry auth for ref, or false without credentials
func (e Endpoint) authConfig(ref string) (registry.AuthConfig, bool) {
	if !e.HasCredentials() {
		return registry.AuthConfig{}, false
	}
	return registry.AuthConfig{
		Username:      e.Credentials.Username,
		Password:      e.Credentials.Password,
		Email:         e.Credentials.Email,
		ServerAddress: registryHost(ref),
	}, true
}

// encodedAuth returns the X-Registry-Auth value for ref
func (e Endpoint) encodedAuth(ref string) (string, error) {
	auth, ok := e.authConfig(ref)
	if !ok {
		return "", nil
	}
	return registry.EncodeAuthConfig(auth)
}

// buildAuthConfigs keys the endpoint credentials by every registry the tags point at
func (e Endpoint) buildAuthConfigs(tags []string) map[string]registry.AuthConfig {
	if !e.HasCredentials() {
		return nil
	}
	configs := make(map[string]registry.AuthConfig, len(tags))
	for _, tag := range tags {
		auth, _ := e.authConfig(tag)
		configs[auth.ServerAddress] = auth
	}
	return configs
}

// registryHost returns the registry a reference lives in.
// Unparseable references fall back to Docker Hub, the engine's own default.
func registryHost(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return dockerHubIndex
	}
	domain := reference.Domain(named)
	if domain == "docker.io" {
		return dockerHubIndex
	}
	return domain
}
