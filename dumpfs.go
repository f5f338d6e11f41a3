// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/elliotnunn/memzip/internal/zip"
)

func dumpFS(w io.Writer, fsys fs.FS) error {
	const tfmt = "2006-01-02T15:04:05"
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		fmt.Fprintf(w, "%#v\n", p)
		if err != nil {
			fmt.Fprintf(w, "    dump error: %s\n", err.Error())
			return nil
		}
		i, err := d.Info()
		if err != nil {
			fmt.Fprintf(w, "    dump error: %s\n", err.Error())
			return fs.SkipDir
		}

		fmt.Fprintf(w, "    %v size=%d modtime=%s\n",
			i.Mode(), i.Size(), i.ModTime().Format(tfmt))

		if f, ok := i.Sys().(*zip.File); ok {
			fmt.Fprintf(w, "    method=%s packed=%d offset=%#x\n",
				methodName(f.Method), f.CompressedSize, f.HeaderOffset)
		}
		return nil
	})
}
