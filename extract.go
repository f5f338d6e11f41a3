// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// extract writes every file in fsys below dir, keeping modification times.
// Paths that would land outside dir on this OS are refused.
func extract(fsys fs.FS, dir string) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		local := filepath.FromSlash(p)
		if !filepath.IsLocal(local) && p != "." {
			return fmt.Errorf("%s: unsafe path", p)
		}
		dest := filepath.Join(dir, local)

		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return err
		}
		info, err := d.Info()
		if err == nil && !info.ModTime().IsZero() {
			if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
				slog.Warn("chtimesFailed", "path", dest, "err", err)
			}
		}
		slog.Debug("extracted", "path", p, "size", len(content))
		return nil
	})
}
