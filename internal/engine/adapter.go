package engine

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	bridgeerrors "dockerbridge/internal/errors"
)

// Completion messages returned on success
const (
	MessageBuildComplete = "build complete"
	MessagePushComplete  = "Push Complete"
)

const (
	buildFailure = "Docker API error: Failed to build image"
	pushFailure  = "Docker API error: Failed to push image"
)

// Outcome is the result of a successful operation
type Outcome struct {
	Message string `json:"message"`
}

// Adapter issues build and push requests against one engine client.
// It holds no mutable state after construction and is safe for concurrent use.
type Adapter struct {
	engine     EngineAPI
	endpoint   Endpoint
	dockerfile string
	logger     *zap.Logger
}

// Option configures an Adapter
type Option func(*options)

type options struct {
	factory    EngineFactory
	dockerfile string
	apiVersion string
}

// WithEngineFactory replaces the Docker client constructor
func WithEngineFactory(factory EngineFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithDockerfile sets the Dockerfile path, relative to the build context
func WithDockerfile(path string) Option {
	return func(o *options) {
		if path != "" {
			o.dockerfile = path
		}
	}
}

// WithAPIVersion pins the engine API version instead of negotiating
func WithAPIVersion(version string) Option {
	return func(o *options) {
		o.apiVersion = version
	}
}

// Create connects to url (or the local default) and returns an adapter.
//
// When user is set, the client is built from a credentialed endpoint
// carrying the raw url instead of the url-only endpoint.
func Create(url, user, password, email string, logger *zap.Logger, opts ...Option) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var endpoint Endpoint
	if url == "" {
		logger.Info("Connecting to localhost")
		endpoint = Endpoint{URL: DefaultURL}
	} else {
		logger.Info("Connecting to engine", zap.String("url", url))
		endpoint = Endpoint{URL: url}
	}

	if user != "" {
		endpoint = Endpoint{
			URL: url,
			Credentials: &Credentials{
				Username: user,
				Password: password,
				Email:    email,
			},
		}
	}

	return New(endpoint, logger, opts...)
}

// New constructs the engine client for endpoint and wraps it
func New(endpoint Endpoint, logger *zap.Logger, opts ...Option) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{
		factory:    NewDockerEngine,
		dockerfile: "Dockerfile",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiVersion != "" {
		endpoint.APIVersion = o.apiVersion
	}

	engine, err := o.factory(endpoint)
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.ErrorCodeEngineUnavailable, err)
	}

	return &Adapter{
		engine:     engine,
		endpoint:   endpoint,
		dockerfile: o.dockerfile,
		logger:     logger,
	}, nil
}

// Endpoint returns the connection parameters the client was built from
func (a *Adapter) Endpoint() Endpoint {
	return a.endpoint
}

// Close releases the engine client
func (a *Adapter) Close() error {
	return a.engine.Close()
}

// BuildImage builds contextDir and tags the result with tag
func (a *Adapter) BuildImage(ctx context.Context, contextDir, tag string) (Outcome, error) {
	if tag == "" {
		return Outcome{}, bridgeerrors.New(bridgeerrors.ErrorCodeInvalidArgument, "Image tag can not be empty.")
	}
	return a.build(ctx, contextDir, []string{tag})
}

// BuildImageTags builds contextDir once and applies every tag to the image
func (a *Adapter) BuildImageTags(ctx context.Context, contextDir string, tags []string) (Outcome, error) {
	if len(tags) == 0 {
		return Outcome{}, bridgeerrors.New(bridgeerrors.ErrorCodeInvalidArgument, "Image tags can not be empty.")
	}
	for i, tag := range tags {
		if tag == "" {
			return Outcome{}, bridgeerrors.New(bridgeerrors.ErrorCodeInvalidArgument,
				fmt.Sprintf("Image tag at position %d can not be empty.", i))
		}
	}
	return a.build(ctx, contextDir, tags)
}

// PushImage pushes tag to its registry
func (a *Adapter) PushImage(ctx context.Context, tag string) (Outcome, error) {
	if tag == "" {
		return Outcome{}, bridgeerrors.New(bridgeerrors.ErrorCodeInvalidArgument, "Image tag can not be empty.")
	}

	logger := a.logger.With(zap.String("image_tag", tag))
	logger.Info("Pushing Docker image")

	auth, err := a.endpoint.encodedAuth(tag)
	if err != nil {
		return Outcome{}, bridgeerrors.Wrap(bridgeerrors.ErrorCodeInvalidArgument, err, "Failed to encode registry credentials")
	}

	body, err := a.engine.ImagePush(ctx, tag, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		logger.Error("Docker image push request failed", zap.Error(err))
		return Outcome{}, requestFailure(err, pushFailure)
	}

	cb := newSyncCallback(logger)
	execStream(body, cb)
	if err := cb.Await(ctx); err != nil {
		logger.Error("Docker image push failed", zap.Error(err))
		return Outcome{}, streamFailure(ctx, err, pushFailure)
	}

	logger.Info("Docker image pushed successfully")
	return Outcome{Message: MessagePushComplete}, nil
}

func (a *Adapter) build(ctx context.Context, contextDir string, tags []string) (Outcome, error) {
	logger := a.logger.With(
		zap.String("context_path", contextDir),
		zap.Strings("image_tags", tags),
	)
	logger.Info("Building Docker image")

	buildContext, err := packContext(contextDir, a.dockerfile)
	if err != nil {
		logger.Error("Failed to prepare build context", zap.Error(err))
		return Outcome{}, err
	}
	defer buildContext.Close()

	buildOptions := types.ImageBuildOptions{
		Dockerfile:  a.dockerfile,
		Tags:        append([]string(nil), tags...),
		Remove:      true, // Remove intermediate containers
		AuthConfigs: a.endpoint.buildAuthConfigs(tags),
	}

	buildResponse, err := a.engine.ImageBuild(ctx, buildContext, buildOptions)
	if err != nil {
		logger.Error("Docker image build request failed", zap.Error(err))
		return Outcome{}, requestFailure(err, buildFailure)
	}

	cb := newSyncCallback(logger)
	execStream(buildResponse.Body, cb)
	if err := cb.Await(ctx); err != nil {
		logger.Error("Docker image build failed", zap.Error(err))
		return Outcome{}, streamFailure(ctx, err, buildFailure)
	}

	logger.Info("Docker image built successfully")
	return Outcome{Message: MessageBuildComplete}, nil
}

// requestFailure classifies an error returned before any stream existed
func requestFailure(err error, details string) error {
	if client.IsErrConnectionFailed(err) {
		return bridgeerrors.Wrap(bridgeerrors.ErrorCodeEngineUnavailable, err, details)
	}
	return bridgeerrors.Wrap(bridgeerrors.ErrorCodeEngineOperation, err, details)
}

// streamFailure classifies an error observed while waiting on the stream
func streamFailure(ctx context.Context, err error, details string) error {
	if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
		return fmt.Errorf("%s: %w", details, err)
	}
	return bridgeerrors.Wrap(bridgeerrors.ErrorCodeEngineOperation, err, details)
}
