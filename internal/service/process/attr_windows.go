//go:build windows

package process

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedAttr gives the child its own console and process group, the same
// effect as `start "" miapp.exe`.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_CONSOLE | windows.CREATE_NEW_PROCESS_GROUP,
	}
}
