// Package pathutil provides path and name validation utilities for beam.
package pathutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// NormalizeName returns the NFC form of name so that visually identical
// server names typed on different platforms compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidateName checks that a server name is safe to use in log fields,
// flags and staging sub-directories.
func ValidateName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("name must not be empty")
	}

	name = NormalizeName(name)

	if name == ".." || strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain '..': %s", name)
	}

	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain separators: %s", name)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("name must not contain control characters: %q", name)
		}
	}

	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("name must match [a-zA-Z0-9._-]+: %s", name)
	}

	return nil
}

// ValidateStagingPath rejects staging locations whose wipe-and-recreate would
// destroy something beam does not own: the filesystem root, the source tree,
// or any ancestor of the source tree.
func ValidateStagingPath(sourceDir, stagingPath string) error {
	if strings.TrimSpace(stagingPath) == "" {
		return errclass.ErrPathUnsafe.WithMessage("staging path must not be empty")
	}

	source, err := resolve(sourceDir)
	if err != nil {
		return errclass.ErrPathUnsafe.WithMessagef("cannot resolve source dir: %v", err)
	}
	staging, err := resolve(stagingPath)
	if err != nil {
		return errclass.ErrPathUnsafe.WithMessagef("cannot resolve staging path: %v", err)
	}

	if staging == filepath.Dir(staging) {
		return errclass.ErrPathUnsafe.WithMessagef("staging path is a filesystem root: %s", stagingPath)
	}
	if staging == source {
		return errclass.ErrPathUnsafe.WithMessagef("staging path is the source directory: %s", stagingPath)
	}
	if strings.HasPrefix(source+string(filepath.Separator), staging+string(filepath.Separator)) {
		return errclass.ErrPathUnsafe.WithMessagef("staging path contains the source directory: %s", stagingPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		if h, err := resolve(home); err == nil && h == staging {
			return errclass.ErrPathUnsafe.WithMessagef("staging path is the home directory: %s", stagingPath)
		}
	}

	return nil
}

// resolve returns an absolute, symlink-free form of path. Paths that do not
// exist yet are resolved through their closest existing ancestor.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	return resolveClosestAncestor(abs), nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return path
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
