// Package vault performs scoped writes into a vault's plugin storage root.
// Every destination is checked to stay inside the root before it is touched.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultConfigDir is the host's per-vault configuration folder.
const DefaultConfigDir = ".obsidian"

// ErrUnsafePath is returned for destinations that are absolute or escape the root.
var ErrUnsafePath = errors.New("unsafe path")

// Vault writes files below Root.
type Vault struct {
	Root string
}

// New returns a vault scoped to root.
func New(root string) *Vault {
	return &Vault{Root: root}
}

// PluginRoot returns <vaultDir>/<configDir>/plugins.
func PluginRoot(vaultDir, configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	return filepath.Join(vaultDir, configDir, "plugins")
}

// Resolve joins elem onto the root after validating each element.
// Elements use forward slashes as the server does; absolute paths, drive
// letters, backslashes and ".." segments are rejected.
func (v *Vault) Resolve(elem ...string) (string, error) {
	rel := make([]string, 0, len(elem))
	for _, e := range elem {
		if err := checkRelative(e); err != nil {
			return "", err
		}
		rel = append(rel, filepath.FromSlash(path.Clean(e)))
	}

	dest := filepath.Join(append([]string{v.Root}, rel...)...)
	within, err := filepath.Rel(v.Root, dest)
	if err != nil || !filepath.IsLocal(within) {
		return "", fmt.Errorf("%w: %s escapes %s", ErrUnsafePath, strings.Join(elem, "/"), v.Root)
	}
	return dest, nil
}

func checkRelative(p string) error {
	if p == "" || path.Clean(p) == "." {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.ContainsRune(p, '\\') || strings.ContainsRune(p, 0) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	if path.IsAbs(p) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" || hasDriveLetter(p) {
		return fmt.Errorf("%w: %q is absolute", ErrUnsafePath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q has a parent segment", ErrUnsafePath, p)
		}
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	return nil
}

// Write fully overwrites the file at elem (joined below Root) with content,
// creating parent directories. The write is atomic: temp file + rename.
// It returns the absolute destination.
func (v *Vault) Write(content []byte, elem ...string) (string, error) {
	dest, err := v.Resolve(elem...)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+"-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return dest, nil
}

// hasDriveLetter catches "C:..." names that are only absolute on Windows.
func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
