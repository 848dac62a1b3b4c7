package domain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/framework/helpers"
)

// AssetDir is the directory, relative to the application directory, that assets are copied to.
const AssetDir = "bin"

type assetSource struct {
	dir      string
	patterns []string
}

// WithAssets copies the files in src that match any of patterns into the application's bin
// directory before the application is created. A file is copied only if the destination is
// missing or has a different modification time; after copying, the destination gets the
// source's modification time.
func WithAssets(src string, patterns ...string) Option {
	return helpers.OptionFunc[domainConfig](func(c *domainConfig) error {
		if src == "" {
			return &framework.ArgumentError{Name: "src", Reason: "must not be empty"}
		}
		if len(patterns) == 0 {
			patterns = []string{"*"}
		}
		for _, p := range patterns {
			if _, err := filepath.Match(p, ""); err != nil {
				return &framework.ArgumentError{Name: "patterns", Reason: fmt.Sprintf("%q: %s", p, err)}
			}
		}
		c.assets = append(c.assets, assetSource{dir: src, patterns: patterns})
		return nil
	})
}

func (a assetSource) sync(appDir string, logger framework.Logger) error {
	seen := make(map[string]bool)
	for _, pattern := range a.patterns {
		matches, err := filepath.Glob(filepath.Join(a.dir, pattern))
		if err != nil {
			return err
		}
		for _, src := range matches {
			if seen[src] {
				continue
			}
			seen[src] = true
			info, err := os.Stat(src)
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				continue
			}
			dest := filepath.Join(appDir, AssetDir, filepath.Base(src))
			copied, err := syncFile(src, dest, info)
			if err != nil {
				return fmt.Errorf("copying asset %s: %w", src, err)
			}
			if copied {
				logger.Printf("Copied %s to %s", src, dest)
			}
		}
	}
	return nil
}

func syncFile(src, dest string, info os.FileInfo) (bool, error) {
	if existing, err := os.Stat(dest); err == nil && existing.ModTime().Equal(info.ModTime()) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, err
	}
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close() //nolint:errcheck
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return false, err
	}
	if err := out.Close(); err != nil {
		return false, err
	}
	return true, os.Chtimes(dest, info.ModTime(), info.ModTime())
}
