package dynlib

import (
	"context"
	"debug/elf"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// ListDependencies returns the DT_NEEDED entries of the ELF file at path,
// in the order they are recorded. Transitive dependencies are not
// followed.
func ListDependencies(
	ctx context.Context,
	path string,
) (_ret []string, _err error) {
	logger.Debugf(ctx, "ListDependencies(ctx, '%s')", path)
	defer func() { logger.Debugf(ctx, "/ListDependencies(ctx, '%s'): %v %v", path, _ret, _err) }()

	f, err := elf.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	defer f.Close()

	needed, err := f.ImportedLibraries()
	if err != nil {
		return nil, &LoadError{Path: path, Cause: fmt.Errorf("unable to read the dynamic section: %w", err)}
	}

	result := make([]string, 0, len(needed))
	seen := map[string]struct{}{}
	for _, name := range needed {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result, nil
}
