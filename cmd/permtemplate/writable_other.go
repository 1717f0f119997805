//go:build !unix

package main

import (
	"errors"
	"os"
)

func writable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o200 == 0 {
		return errors.New("directory is read-only")
	}
	return nil
}
