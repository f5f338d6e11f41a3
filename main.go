// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command memzip reads zip archives entirely in memory.
//
//	memzip list [--verbose] [--match GLOB] ARCHIVE
//	memzip cat [--text] ARCHIVE NAME
//	memzip extract [--out DIR] [--match GLOB] ARCHIVE
//	memzip tree [--match GLOB] ARCHIVE
//	memzip serve [--addr :1993] [--match GLOB] ARCHIVE
//	memzip inflate [--zlib] STREAM
//
// An archive may be wrapped in gzip, bzip2 or xz. Use "-" for standard input.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/spf13/pflag"

	"github.com/elliotnunn/memzip/internal/entrycache"
	"github.com/elliotnunn/memzip/internal/flate"
	"github.com/elliotnunn/memzip/internal/zip"
	"github.com/elliotnunn/memzip/internal/zipfs"
)

var errUsage = errors.New("usage: memzip list|cat|extract|tree|serve|inflate [flags] FILE")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "memzip: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	match    string
	cache    string
	addr     string
	out      string
	logLevel string
	text     bool
	verbose  bool
	zlib     bool
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	var o options
	flags := pflag.NewFlagSet("memzip "+cmd, pflag.ContinueOnError)
	flags.StringVar(&o.match, "match", "", "only entries whose names match this glob (** allowed)")
	flags.StringVar(&o.cache, "cache", "", "keep decoded entries in a database in this directory")
	flags.StringVar(&o.addr, "addr", ":1993", "serve: listen address")
	flags.StringVar(&o.out, "out", ".", "extract: destination directory")
	flags.StringVar(&o.logLevel, "log-level", "warn", "debug, info, warn or error")
	flags.BoolVar(&o.text, "text", false, "cat: fail unless the entry is UTF-8 text")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "list: decode every entry and show digests")
	flags.BoolVar(&o.zlib, "zlib", false, "inflate: the stream has a zlib wrapper")
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	switch cmd {
	case "list", "cat", "extract", "tree", "serve", "inflate":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	want := 1
	if cmd == "cat" {
		want = 2
	}
	if len(args) != want {
		return errUsage
	}

	data, release, err := load(args[0])
	if err != nil {
		return err
	}
	defer release()

	if cmd == "inflate" {
		return inflateCmd(stdout, data, o.zlib)
	}

	data, err = unwrap(data)
	if err != nil {
		return err
	}
	a, err := zip.NewArchive(data)
	if err != nil {
		return err
	}
	slog.Info("archiveOpened", "path", args[0], "size", len(data), "entries", len(a.File))

	switch cmd {
	case "list":
		return listCmd(stdout, a, o)
	case "cat":
		return catCmd(stdout, a, args[1], o.text)
	}

	keep, err := matcher(o.match)
	if err != nil {
		return err
	}
	cache, closeCache, err := openCache(o.cache, data)
	if err != nil {
		return err
	}
	defer closeCache()
	fsys := zipfs.New(a, cache, keep)

	switch cmd {
	case "extract":
		return extract(fsys, o.out)
	case "tree":
		return dumpFS(stdout, fsys)
	default: // serve
		slog.Info("serving", "addr", o.addr)
		return http.ListenAndServe(o.addr, http.FileServerFS(fsys))
	}
}

// matcher returns nil for an empty pattern, meaning everything matches.
func matcher(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return nil, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("bad --match pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return func(name string) bool {
		ok, _ := doublestar.Match(pattern, name)
		return ok
	}, nil
}

func openCache(dir string, data []byte) (zipfs.Cache, func(), error) {
	if dir == "" {
		return entrycache.ForArchive(entrycache.NewMemory(memLimit), data), func() {}, nil
	}
	d, err := entrycache.OpenDisk(dir)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := d.Close(); err != nil {
			slog.Warn("cacheCloseError", "dir", dir, "err", err)
		}
	}
	return entrycache.ForArchive(d, data), closer, nil
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	}
	return fmt.Sprintf("m%d", m)
}

func listCmd(w io.Writer, a *zip.Archive, o options) error {
	keep, err := matcher(o.match)
	if err != nil {
		return err
	}
	for i := range a.File {
		f := &a.File[i]
		st, err := a.Stat(f)
		if err != nil {
			return &zip.EntryError{Index: i, Name: f.Name, Err: err}
		}
		if keep != nil && !keep(st.Name) {
			continue
		}
		fmt.Fprintf(w, "%10d %10d %-7s %s\n", st.Size, st.CompressedSize, methodName(f.Method), st.Name)
		if o.verbose {
			describe(w, a, f)
		}
	}
	return nil
}

// describe decodes one entry and prints its digest and block makeup
func describe(w io.Writer, a *zip.Archive, f *zip.File) {
	content, err := a.ReadFile(f)
	if err != nil {
		fmt.Fprintf(w, "%21s error: %v\n", "", err)
		return
	}
	fmt.Fprintf(w, "%21s xxhash=%016x", "", xxhash.Sum64(content))
	if f.Method == zip.Deflate {
		st, err := blockStats(a, f, len(content))
		if err != nil {
			fmt.Fprintf(w, " stats error: %v\n", err)
			return
		}
		fmt.Fprintf(w, " blocks=%d stored=%d fixed=%d dynamic=%d",
			st.Blocks, st.Stored, st.Fixed, st.Dynamic)
	}
	fmt.Fprintln(w)
}

func blockStats(a *zip.Archive, f *zip.File, size int) (flate.Stats, error) {
	raw, err := a.RawData(f)
	if err != nil {
		return flate.Stats{}, err
	}
	_, st, err := flate.InflateStats(raw, size)
	return st, err
}

func catCmd(w io.Writer, a *zip.Archive, name string, text bool) error {
	f := a.Lookup(name)
	if f == nil {
		return &fs.PathError{Op: "cat", Path: name, Err: fs.ErrNotExist}
	}
	content, err := a.ReadFile(f)
	if err != nil {
		return err
	}
	if text && len(content) > 0 && (zip.Entry{Name: name, Content: content}).Text() == "" {
		return fmt.Errorf("%s: not UTF-8 text", name)
	}
	_, err = w.Write(content)
	return err
}

func inflateCmd(w io.Writer, data []byte, isZlib bool) error {
	var content []byte
	var err error
	if isZlib {
		content, err = flate.InflateZlib(data)
	} else {
		content, err = flate.Inflate(data, -1)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}
