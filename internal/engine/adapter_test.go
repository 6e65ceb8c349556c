package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	bridgeerrors "dockerbridge/internal/errors"
)

func newTestAdapter(t *testing.T, fake *fakeEngine, endpoint Endpoint) *Adapter {
	t.Helper()
	adapter, err := New(endpoint, zaptest.NewLogger(t), WithEngineFactory(func(Endpoint) (EngineAPI, error) {
		return fake, nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return adapter
}

func TestEmptyTagsAreRejectedWithoutRequests(t *testing.T) {
	ctx := context.Background()
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})

	tests := []struct {
		name string
		call func(a *Adapter) error
	}{
		{"single tag empty", func(a *Adapter) error {
			_, err := a.BuildImage(ctx, dir, "")
			return err
		}},
		{"tags nil", func(a *Adapter) error {
			_, err := a.BuildImageTags(ctx, dir, nil)
			return err
		}},
		{"tags empty", func(a *Adapter) error {
			_, err := a.BuildImageTags(ctx, dir, []string{})
			return err
		}},
		{"tags with empty element", func(a *Adapter) error {
			_, err := a.BuildImageTags(ctx, dir, []string{"a:1", ""})
			return err
		}},
		{"push tag empty", func(a *Adapter) error {
			_, err := a.PushImage(ctx, "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEngine{buildStream: okBuildStream, pushStream: okPushStream}
			adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})

			err := tt.call(adapter)
			if !bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeInvalidArgument) {
				t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
			}
			if n := fake.requestCount(); n != 0 {
				t.Fatalf("expected no engine requests, got %d", n)
			}
		})
	}
}

func TestBuildImageTagsAttachesEveryTagToOneBuild(t *testing.T) {
	fake := &fakeEngine{buildStream: okBuildStream}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})

	outcome, err := adapter.BuildImageTags(context.Background(), dir, []string{"a:1", "a:2"})
	if err != nil {
		t.Fatalf("BuildImageTags: %v", err)
	}
	if outcome.Message != "build complete" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if len(fake.builds) != 1 {
		t.Fatalf("expected one build request, got %d", len(fake.builds))
	}
	got := fake.builds[0]
	if len(got.Tags) != 2 || got.Tags[0] != "a:1" || got.Tags[1] != "a:2" {
		t.Fatalf("unexpected tags %v", got.Tags)
	}
	if got.Dockerfile != "Dockerfile" || !got.Remove {
		t.Fatalf("unexpected build options %+v", got)
	}
	if got.AuthConfigs != nil {
		t.Fatalf("expected no auth configs without credentials, got %v", got.AuthConfigs)
	}
}

func TestBuildImageSingleTag(t *testing.T) {
	fake := &fakeEngine{buildStream: okBuildStream}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n", "main.go": "package main\n"})

	outcome, err := adapter.BuildImage(context.Background(), dir, "app:latest")
	if err != nil {
		t.Fatalf("BuildImage: %v", err)
	}
	if outcome.Message != MessageBuildComplete {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if tags := fake.builds[0].Tags; len(tags) != 1 || tags[0] != "app:latest" {
		t.Fatalf("unexpected tags %v", tags)
	}
	files := fake.contextFiles[0]
	if !contains(files, "Dockerfile") || !contains(files, "main.go") {
		t.Fatalf("build context missing files: %v", files)
	}
}

func TestBuildImageSurfacesEngineError(t *testing.T) {
	fake := &fakeEngine{buildStream: diskFullStream}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})

	_, err := adapter.BuildImage(context.Background(), dir, "app:1")
	if !bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeEngineOperation) {
		t.Fatalf("expected ENGINE_OPERATION_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("error %q does not carry engine message", err.Error())
	}
	if !strings.Contains(err.Error(), "Failed to build image") {
		t.Fatalf("error %q does not name the operation", err.Error())
	}
}

func TestBuildImageRequestError(t *testing.T) {
	fake := &fakeEngine{buildErr: errors.New("Error response from daemon: dockerfile parse error")}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})

	_, err := adapter.BuildImage(context.Background(), dir, "app:1")
	if !bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeEngineOperation) {
		t.Fatalf("expected ENGINE_OPERATION_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "dockerfile parse error") {
		t.Fatalf("error %q lost daemon text", err.Error())
	}
}

func TestBuildImageMissingContext(t *testing.T) {
	fake := &fakeEngine{buildStream: okBuildStream}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})

	_, err := adapter.BuildImage(context.Background(), t.TempDir()+"/missing", "app:1")
	if !bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeBuildContextInvalid) {
		t.Fatalf("expected BUILD_CONTEXT_INVALID, got %v", err)
	}
	if fake.requestCount() != 0 {
		t.Fatalf("engine was called for a missing context")
	}
}

func TestBuildImageWithCredentialsSendsAuthConfigs(t *testing.T) {
	fake := &fakeEngine{buildStream: okBuildStream}
	endpoint := Endpoint{URL: DefaultURL, Credentials: &Credentials{Username: "ci", Password: "secret", Email: "ci@example.com"}}
	adapter := newTestAdapter(t, fake, endpoint)
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})

	if _, err := adapter.BuildImageTags(context.Background(), dir, []string{"registry.example.com/team/app:1", "app:1"}); err != nil {
		t.Fatalf("BuildImageTags: %v", err)
	}
	auths := fake.builds[0].AuthConfigs
	if len(auths) != 2 {
		t.Fatalf("expected auth for two registries, got %v", auths)
	}
	if auths["registry.example.com"].Username != "ci" {
		t.Fatalf("missing private registry auth: %v", auths)
	}
	if auths[dockerHubIndex].Password != "secret" {
		t.Fatalf("missing docker hub auth: %v", auths)
	}
}

func TestPushImageSuccess(t *testing.T) {
	fake := &fakeEngine{pushStream: okPushStream}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})

	outcome, err := adapter.PushImage(context.Background(), "registry.example.com/app:1.0")
	if err != nil {
		t.Fatalf("PushImage: %v", err)
	}
	if outcome.Message != "Push Complete" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if len(fake.pushes) != 1 || fake.pushes[0].ref != "registry.example.com/app:1.0" {
		t.Fatalf("unexpected pushes %+v", fake.pushes)
	}
	if fake.pushes[0].options.RegistryAuth != "" {
		t.Fatalf("expected no registry auth without credentials")
	}
}

func TestPushImageEncodesCredentials(t *testing.T) {
	fake := &fakeEngine{pushStream: okPushStream}
	endpoint := Endpoint{URL: DefaultURL, Credentials: &Credentials{Username: "ci", Password: "secret", Email: "ci@example.com"}}
	adapter := newTestAdapter(t, fake, endpoint)

	if _, err := adapter.PushImage(context.Background(), "registry.example.com/app:1.0"); err != nil {
		t.Fatalf("PushImage: %v", err)
	}

	auth, err := registry.DecodeAuthConfig(fake.pushes[0].options.RegistryAuth)
	if err != nil {
		t.Fatalf("DecodeAuthConfig: %v", err)
	}
	if auth.Username != "ci" || auth.Password != "secret" || auth.Email != "ci@example.com" {
		t.Fatalf("unexpected auth %+v", auth)
	}
	if auth.ServerAddress != "registry.example.com" {
		t.Fatalf("unexpected server address %q", auth.ServerAddress)
	}
}

func TestPushImageSurfacesEngineError(t *testing.T) {
	fake := &fakeEngine{pushStream: `{"errorDetail":{"message":"denied: requested access to the resource is denied"},"error":"denied"}` + "\n"}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})

	_, err := adapter.PushImage(context.Background(), "app:1")
	if !bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeEngineOperation) {
		t.Fatalf("expected ENGINE_OPERATION_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "requested access to the resource is denied") {
		t.Fatalf("error %q lost engine message", err.Error())
	}
	if !strings.Contains(err.Error(), "Failed to push image") {
		t.Fatalf("error %q does not name the operation", err.Error())
	}
}

// hangingEngine returns a push stream that never produces data
type hangingEngine struct {
	fakeEngine
	reader *io.PipeReader
}

func (h *hangingEngine) ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	return h.reader, nil
}

func TestPushImageHonoursCancellation(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()
	engine := &hangingEngine{reader: reader}

	adapter, err := New(Endpoint{URL: DefaultURL}, zaptest.NewLogger(t), WithEngineFactory(func(Endpoint) (EngineAPI, error) {
		return engine, nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = adapter.PushImage(ctx, "app:1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAdapterIsSafeForConcurrentBuilds(t *testing.T) {
	fake := &fakeEngine{buildStream: okBuildStream}
	adapter := newTestAdapter(t, fake, Endpoint{URL: DefaultURL})
	dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := adapter.BuildImage(context.Background(), dir, "app:1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent build failed: %v", err)
	}
	if len(fake.builds) != 8 {
		t.Fatalf("expected 8 builds, got %d", len(fake.builds))
	}
}

func TestCreateSelectsEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		user      string
		wantURL   string
		wantCreds bool
	}{
		{name: "empty url uses local default", wantURL: DefaultURL},
		{name: "explicit url", url: "tcp://engine:2376", wantURL: "tcp://engine:2376"},
		{name: "credentialed url", url: "tcp://engine:2376", user: "ci", wantURL: "tcp://engine:2376", wantCreds: true},
		{name: "credentials without url keep raw url", user: "ci", wantURL: "", wantCreds: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []Endpoint
			factory := func(ep Endpoint) (EngineAPI, error) {
				calls = append(calls, ep)
				return &fakeEngine{}, nil
			}

			adapter, err := Create(tt.url, tt.user, "secret", "ci@example.com", zaptest.NewLogger(t), WithEngineFactory(factory))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if len(calls) != 1 {
				t.Fatalf("expected exactly one client, got %d", len(calls))
			}
			ep := calls[0]
			if adapter.Endpoint().URL != ep.URL {
				t.Fatalf("adapter endpoint %+v differs from constructed %+v", adapter.Endpoint(), ep)
			}
			if ep.URL != tt.wantURL {
				t.Fatalf("URL = %q, want %q", ep.URL, tt.wantURL)
			}
			if ep.HasCredentials() != tt.wantCreds {
				t.Fatalf("HasCredentials = %v, want %v", ep.HasCredentials(), tt.wantCreds)
			}
			if tt.wantCreds {
				c := ep.Credentials
				if c.Username != tt.user || c.Password != "secret" || c.Email != "ci@example.com" {
					t.Fatalf("unexpected credentials %+v", c)
				}
			}
		})
	}
}

func TestCreateLogsConnectionTarget(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	factory := func(Endpoint) (EngineAPI, error) { return &fakeEngine{}, nil }

	if _, err := Create("", "", "", "", zap.New(core), WithEngineFactory(factory)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if logs.FilterMessage("Connecting to localhost").Len() != 1 {
		t.Fatalf("expected localhost connection log, got %v", logs.All())
	}

	if _, err := Create("tcp://engine:2376", "", "", "", zap.New(core), WithEngineFactory(factory)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	entries := logs.FilterMessage("Connecting to engine").All()
	if len(entries) != 1 || entries[0].ContextMap()["url"] != "tcp://engine:2376" {
		t.Fatalf("expected engine connection log, got %v", entries)
	}
}

func TestCreateFactoryFailure(t *testing.T) {
	_, err := Create("tcp://engine:2376", "", "", "", nil, WithEngineFactory(func(Endpoint) (EngineAPI, error) {
		return nil, errors.New("bad host")
	}))
	if !bridgeerrors.IsCode(err, bridgeerrors.ErrorCodeEngineUnavailable) {
		t.Fatalf("expected ENGINE_UNAVAILABLE, got %v", err)
	}
}

func TestOptionsApply(t *testing.T) {
	var got Endpoint
	fake := &fakeEngine{buildStream: okBuildStream}
	adapter, err := New(Endpoint{URL: DefaultURL}, nil,
		WithAPIVersion("1.43"),
		WithDockerfile("build/Dockerfile.ci"),
		WithEngineFactory(func(ep Endpoint) (EngineAPI, error) {
			got = ep
			return fake, nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got.APIVersion != "1.43" {
		t.Fatalf("API version not forwarded: %+v", got)
	}

	dir := writeContext(t, map[string]string{"build/Dockerfile.ci": "FROM scratch\n"})
	if _, err := adapter.BuildImage(context.Background(), dir, "app:1"); err != nil {
		t.Fatalf("BuildImage: %v", err)
	}
	if fake.builds[0].Dockerfile != "build/Dockerfile.ci" {
		t.Fatalf("unexpected dockerfile %q", fake.builds[0].Dockerfile)
	}

	if err := adapter.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.closed {
		t.Fatalf("Close did not release the engine client")
	}
}

func TestNewDockerEngine(t *testing.T) {
	engine, err := NewDockerEngine(Endpoint{URL: "tcp://127.0.0.1:2375", APIVersion: "1.43"})
	if err != nil {
		t.Fatalf("NewDockerEngine: %v", err)
	}
	defer engine.Close()

	if _, err := NewDockerEngine(Endpoint{URL: "::not a url"}); err == nil {
		t.Fatalf("expected invalid host to fail")
	}
}

var _ EngineAPI = (*fakeEngine)(nil)
