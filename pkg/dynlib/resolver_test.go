package dynlib

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestSelectDependency(t *testing.T) {
	t.Run("singleMatch", func(t *testing.T) {
		got, err := SelectDependency([]string{"libc.so", "libglut-6c1e.so", "libm.so"}, DefaultShimPrefix)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "libglut-6c1e.so" {
			t.Fatalf("expected 'libglut-6c1e.so', got '%s'", got)
		}
	})

	t.Run("noMatch", func(t *testing.T) {
		deps := []string{"libc.so", "libm.so"}
		_, err := SelectDependency(deps, DefaultShimPrefix)
		var notFound *DependencyNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected *DependencyNotFoundError, got %T: %v", err, err)
		}
		if notFound.Prefix != DefaultShimPrefix {
			t.Fatalf("unexpected prefix '%s'", notFound.Prefix)
		}
	})

	t.Run("emptyList", func(t *testing.T) {
		_, err := SelectDependency(nil, DefaultShimPrefix)
		var notFound *DependencyNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected *DependencyNotFoundError, got %T: %v", err, err)
		}
	})

	t.Run("firstOfMany", func(t *testing.T) {
		got, err := SelectDependency([]string{"libc.so", "libglut-b.so", "libglut-a.so"}, DefaultShimPrefix)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "libglut-b.so" {
			t.Fatalf("expected the first match 'libglut-b.so', got '%s'", got)
		}
	})

	t.Run("prefixOnlyAtStart", func(t *testing.T) {
		_, err := SelectDependency([]string{"librust-libglut.so"}, DefaultShimPrefix)
		if err == nil {
			t.Fatalf("expected an error")
		}
	})
}

func TestShimPath(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "libglut-1.so"), []byte{0}, 0o644))

	t.Run("exists", func(t *testing.T) {
		got, err := ShimPath(dir, "libglut-1.so")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(dir, "libglut-1.so"); got != want {
			t.Fatalf("expected '%s', got '%s'", want, got)
		}
	})

	t.Run("longPathIsNotTruncated", func(t *testing.T) {
		deep := dir
		for i := 0; i < 12; i++ {
			deep = filepath.Join(deep, "a-rather-long-directory-name")
		}
		must(t, os.MkdirAll(deep, 0o755))
		must(t, os.WriteFile(filepath.Join(deep, "libglut-1.so"), []byte{0}, 0o644))

		got, err := ShimPath(deep, "libglut-1.so")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(deep, "libglut-1.so"); got != want {
			t.Fatalf("expected '%s', got '%s'", want, got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ShimPath(dir, "libglut-2.so")
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("expected *LoadError, got %T: %v", err, err)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("expected fs.ErrNotExist, got %v", err)
		}
	})

	t.Run("nameWithSeparator", func(t *testing.T) {
		outside := t.TempDir()
		must(t, os.WriteFile(filepath.Join(outside, "libglut-1.so"), []byte{0}, 0o644))
		for _, name := range []string{
			filepath.Join(outside, "libglut-1.so"),
			"../" + filepath.Base(outside) + "/libglut-1.so",
			"libglut/../libglut-1.so",
			"..",
		} {
			_, err := ShimPath(dir, name)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("'%s': expected *LoadError, got %T: %v", name, err, err)
			}
		}
	})

	t.Run("emptyName", func(t *testing.T) {
		if _, err := ShimPath(dir, ""); err == nil {
			t.Fatalf("expected an error")
		}
	})
}

func TestResolverResolveShim(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	enginePath := filepath.Join(dir, "libengine.so")
	writeSharedObject(t, enginePath, []string{"libc.so", "libglut-77.so"})

	t.Run("found", func(t *testing.T) {
		must(t, os.WriteFile(filepath.Join(dir, "libglut-77.so"), []byte{0}, 0o644))
		got, err := Resolver{InstallDir: dir}.ResolveShim(ctx, enginePath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(dir, "libglut-77.so"); got != want {
			t.Fatalf("expected '%s', got '%s'", want, got)
		}
	})

	t.Run("customPrefix", func(t *testing.T) {
		_, err := Resolver{InstallDir: dir, Prefix: "libsdl"}.ResolveShim(ctx, enginePath)
		var notFound *DependencyNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected *DependencyNotFoundError, got %T: %v", err, err)
		}
		if notFound.Library != enginePath {
			t.Fatalf("expected the library path to be reported, got '%s'", notFound.Library)
		}
	})
}
