//go:build unix

package main

import "golang.org/x/sys/unix"

// writable asks the kernel whether the current user may create files in dir,
// without creating one.
func writable(dir string) error {
	return unix.Access(dir, unix.W_OK|unix.X_OK)
}
