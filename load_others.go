//go:build !unix

package main

import (
	"io"
	"os"
)

func load(name string) ([]byte, func(), error) {
	var b []byte
	var err error
	if name == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(name)
	}
	return b, func() {}, err
}
