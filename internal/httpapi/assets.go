package httpapi

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LoadAssets reads every regular file under root into memory, keyed by its
// request path ("/" + path relative to root). Assets are small and served
// from a handful of static files, so this trades a bit of startup latency
// and memory for a handler with no per-request disk I/O.
func LoadAssets(root string) (map[string][]byte, error) {
	assets := make(map[string][]byte)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		assets["/"+filepath.ToSlash(rel)] = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("httpapi: load assets from %s: %w", root, err)
	}

	return assets, nil
}
