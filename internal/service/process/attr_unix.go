//go:build !windows

package process

import "syscall"

// detachedAttr puts the child in its own process group so a terminal signal
// aimed at the exiting parent does not reach it.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
