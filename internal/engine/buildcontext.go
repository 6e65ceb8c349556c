package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/go-archive"
	"github.com/moby/patternmatcher/ignorefile"

	bridgeerrors "dockerbridge/internal/errors"
)

const dockerignoreFile = ".dockerignore"

// packContext tars contextDir for the engine, honouring .dockerignore
func packContext(contextDir, dockerfile string) (io.ReadCloser, error) {
	info, err := os.Stat(contextDir)
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.ErrorCodeBuildContextInvalid, err, "Failed to read build context")
	}
	if !info.IsDir() {
		return nil, bridgeerrors.New(bridgeerrors.ErrorCodeBuildContextInvalid,
			fmt.Sprintf("Build context %s is not a directory", contextDir))
	}

	excludes, err := readDockerignore(contextDir)
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.ErrorCodeBuildContextInvalid, err, "Failed to read .dockerignore")
	}
	excludes = keepBuildFiles(excludes, dockerfile)

	tarReader, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.ErrorCodeBuildContextInvalid, err, "Failed to create tar archive")
	}
	return tarReader, nil
}

// readDockerignore returns the exclude patterns of contextDir, if any
func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, dockerignoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	return ignorefile.ReadAll(f)
}

// keepBuildFiles re-includes the Dockerfile and .dockerignore; the engine needs both
func keepBuildFiles(excludes []string, dockerfile string) []string {
	if len(excludes) == 0 {
		return excludes
	}
	return append(excludes, "!"+filepath.ToSlash(filepath.Clean(dockerfile)), "!"+dockerignoreFile)
}
