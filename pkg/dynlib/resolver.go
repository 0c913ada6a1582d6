package dynlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// DefaultShimPrefix is the name prefix of the windowing-shim library
// among the engine's dependencies.
const DefaultShimPrefix = "libglut"

// SelectDependency returns the first dependency (in list order) whose
// name starts with prefix.
func SelectDependency(
	deps []string,
	prefix string,
) (string, error) {
	for _, name := range deps {
		if strings.HasPrefix(name, prefix) {
			return name, nil
		}
	}
	return "", &DependencyNotFoundError{
		Prefix:       prefix,
		Dependencies: deps,
	}
}

// ShimPath joins the installation directory with the dependency name and
// verifies that the result exists. The name must be a plain file name, so
// the result never leaves installDir.
func ShimPath(
	installDir string,
	name string,
) (string, error) {
	if name == "" {
		return "", &LoadError{Path: installDir, Cause: fmt.Errorf("empty library name")}
	}

	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) || name == "." || name == ".." {
		return "", &LoadError{Path: installDir, Cause: fmt.Errorf("library name '%s' is not a plain file name", name)}
	}
	path := filepath.Join(installDir, name)

	info, err := os.Stat(path)
	if err != nil {
		return "", &LoadError{Path: path, Cause: err}
	}
	if info.IsDir() {
		return "", &LoadError{Path: path, Cause: fmt.Errorf("is a directory")}
	}
	return path, nil
}

// Resolver locates the windowing-shim library of an engine library.
type Resolver struct {
	InstallDir string
	Prefix     string
}

func (r Resolver) prefix() string {
	if r.Prefix == "" {
		return DefaultShimPrefix
	}
	return r.Prefix
}

// ResolveShim lists the dependencies of the engine library, picks the
// shim among them and returns its on-disk path.
func (r Resolver) ResolveShim(
	ctx context.Context,
	enginePath string,
) (_ret string, _err error) {
	logger.Debugf(ctx, "ResolveShim(ctx, '%s')", enginePath)
	defer func() { logger.Debugf(ctx, "/ResolveShim(ctx, '%s'): '%s' %v", enginePath, _ret, _err) }()

	deps, err := ListDependencies(ctx, enginePath)
	if err != nil {
		return "", err
	}

	name, err := SelectDependency(deps, r.prefix())
	if err != nil {
		if notFound, ok := err.(*DependencyNotFoundError); ok {
			notFound.Library = enginePath
		}
		return "", err
	}
	logger.Debugf(ctx, "selected dependency '%s' out of %d", name, len(deps))

	return ShimPath(r.InstallDir, name)
}
