// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package zipfs presents an in-memory zip archive as an [fs.FS].
//
// Directories are synthesized from the entry names.
// Entries are inflated on first open, and optionally cached.
package zipfs

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	gopath "path"
	"slices"
	"strings"
	"time"

	"github.com/elliotnunn/memzip/internal/zip"
	"golang.org/x/sync/singleflight"
)

// Cache holds decoded entries. Slices it returns are never modified.
type Cache interface {
	Get(f *zip.File) ([]byte, bool)
	Add(f *zip.File, content []byte)
}

// FS is safe for concurrent use.
type FS struct {
	a     *zip.Archive
	cache Cache
	nodes map[string]*node
	group singleflight.Group
}

var (
	_ fs.StatFS     = new(FS)
	_ fs.ReadDirFS  = new(FS)
	_ fs.ReadFileFS = new(FS)
)

type node struct {
	name     string // full path
	file     *zip.File
	mtime    time.Time
	children []*node // sorted, directories only
}

func (n *node) isDir() bool { return n.file == nil }

// New builds the directory tree of a. Cache may be nil.
// If keep is not nil then only files whose names it accepts are included.
// Names that are not valid [fs.ValidPath] paths are skipped,
// and where a name repeats, the last entry wins.
func New(a *zip.Archive, cache Cache, keep func(name string) bool) *FS {
	fsys := &FS{
		a:     a,
		cache: cache,
		nodes: map[string]*node{".": {name: "."}},
	}
	for i := range a.File {
		f := &a.File[i]
		name, isDir := strings.CutSuffix(strings.TrimPrefix(f.Name, "/"), "/")
		if !fs.ValidPath(name) || name == "." {
			slog.Debug("zipfsSkipName", "name", f.Name)
			continue
		}
		if isDir {
			if keep == nil || keep(name) {
				fsys.mkdirAll(name).mtime = f.Modified
			}
			continue
		}
		if keep != nil && !keep(name) {
			continue
		}
		if n, ok := fsys.nodes[name]; ok && n.isDir() {
			slog.Warn("zipfsFileShadowsDir", "name", name)
			continue
		}
		parent := fsys.mkdirAll(gopath.Dir(name))
		if n, ok := fsys.nodes[name]; ok {
			n.file, n.mtime = f, f.Modified
			continue
		}
		n := &node{name: name, file: f, mtime: f.Modified}
		fsys.nodes[name] = n
		parent.children = append(parent.children, n)
	}
	for _, n := range fsys.nodes {
		slices.SortFunc(n.children, func(a, b *node) int { return strings.Compare(a.name, b.name) })
	}
	return fsys
}

// mkdirAll returns the directory node, creating it and its parents if needed.
// A file in the way is replaced.
func (fsys *FS) mkdirAll(name string) *node {
	if n, ok := fsys.nodes[name]; ok {
		if n.isDir() {
			return n
		}
		slog.Warn("zipfsDirShadowsFile", "name", name)
		n.file = nil
		return n
	}
	parent := fsys.mkdirAll(gopath.Dir(name))
	n := &node{name: name}
	fsys.nodes[name] = n
	parent.children = append(parent.children, n)
	return n
}

func (fsys *FS) lookup(op, name string) (*node, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	n, ok := fsys.nodes[name]
	if !ok {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return n, nil
}

// content inflates an entry once even when many goroutines ask for it.
// The returned slice may be shared and must not be modified.
func (fsys *FS) content(n *node) ([]byte, error) {
	if fsys.cache != nil {
		if b, ok := fsys.cache.Get(n.file); ok {
			return b, nil
		}
	}
	v, err, _ := fsys.group.Do(n.name, func() (any, error) {
		b, err := fsys.a.ReadFile(n.file)
		if err != nil {
			slog.Warn("zipfsDecodeError", "name", n.name, "err", err)
			return nil, err
		}
		if fsys.cache != nil {
			fsys.cache.Add(n.file, b)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (fsys *FS) Open(name string) (fs.File, error) {
	n, err := fsys.lookup("open", name)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return &dir{n: n}, nil
	}
	b, err := fsys.content(n)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &file{n: n, Reader: bytes.NewReader(b)}, nil
}

func (fsys *FS) Stat(name string) (fs.FileInfo, error) {
	n, err := fsys.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return n.info(), nil
}

func (fsys *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := fsys.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return n.entries(), nil
}

// ReadFile returns a copy that the caller may modify.
func (fsys *FS) ReadFile(name string) ([]byte, error) {
	n, err := fsys.lookup("readfile", name)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	b, err := fsys.content(n)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return slices.Clone(b), nil
}

func (n *node) info() fs.FileInfo { return fileInfo{n} }

func (n *node) entries() []fs.DirEntry {
	ret := make([]fs.DirEntry, len(n.children))
	for i, c := range n.children {
		ret[i] = fs.FileInfoToDirEntry(c.info())
	}
	return ret
}

type fileInfo struct{ n *node }

func (i fileInfo) Name() string       { return gopath.Base(i.n.name) }
func (i fileInfo) ModTime() time.Time { return i.n.mtime }
func (i fileInfo) IsDir() bool        { return i.n.isDir() }

// Sys returns the *zip.File for a file, or nil for a directory.
func (i fileInfo) Sys() any {
	if i.n.isDir() {
		return nil
	}
	return i.n.file
}

func (i fileInfo) Size() int64 {
	if i.n.isDir() {
		return 0
	}
	return int64(i.n.file.UncompressedSize)
}

func (i fileInfo) Mode() fs.FileMode {
	if i.n.isDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

type file struct {
	n *node
	*bytes.Reader
}

var (
	_ io.ReaderAt = new(file)
	_ io.Seeker   = new(file)
)

func (f *file) Stat() (fs.FileInfo, error) { return f.n.info(), nil }
func (f *file) Close() error               { return nil }

type dir struct {
	n       *node
	listing []fs.DirEntry
	offset  int
}

func (d *dir) Stat() (fs.FileInfo, error) { return d.n.info(), nil }
func (d *dir) Close() error               { return nil }

func (d *dir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.n.name, Err: fs.ErrInvalid}
}

// ReadDir has the usual partial-listing semantics
func (d *dir) ReadDir(count int) ([]fs.DirEntry, error) {
	if d.listing == nil {
		d.listing = d.n.entries()
	}
	n := len(d.listing) - d.offset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	copy(list, d.listing[d.offset:][:n])
	d.offset += n
	return list, nil
}
