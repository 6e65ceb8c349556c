package engine

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
)

const (
	okBuildStream = `{"stream":"Step 1/1 : FROM scratch\n"}
{"stream":" ---> Running\n"}
{"aux":{"ID":"sha256:abc"}}
{"stream":"Successfully built abc\n"}
`
	okPushStream = `{"status":"The push refers to repository [registry.example.com/app]"}
{"status":"Pushed","progressDetail":{},"id":"5f70bf18a086"}
{"status":"1.0: digest: sha256:abc size: 528"}
`
	diskFullStream = `{"stream":"Step 1/1 : FROM scratch\n"}
{"errorDetail":{"message":"disk full"},"error":"disk full"}
{"stream":"never delivered\n"}
`
)

type pushCall struct {
	ref     string
	options image.PushOptions
}

// fakeEngine records requests and replays canned message streams
type fakeEngine struct {
	mu sync.Mutex

	buildStream string
	pushStream  string
	buildErr    error
	pushErr     error

	builds       []types.ImageBuildOptions
	contextFiles [][]string
	pushes       []pushCall
	closed       bool
}

func (f *fakeEngine) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	names, err := tarNames(buildContext)
	if err != nil {
		return types.ImageBuildResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, options)
	f.contextFiles = append(f.contextFiles, names)
	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.buildStream))}, nil
}

func (f *fakeEngine) ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, pushCall{ref: ref, options: options})
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return io.NopCloser(strings.NewReader(f.pushStream)), nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.builds) + len(f.pushes)
}

func tarNames(r io.Reader) ([]string, error) {
	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimSuffix(hdr.Name, "/"))
	}
}

// writeContext creates a build context with the given files
func writeContext(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
