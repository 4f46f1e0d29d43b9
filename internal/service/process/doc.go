// Package process starts detached child processes and waits for other
// processes to exit. It hides the per-OS process attributes needed for a
// child to outlive the parent that spawned it.
package process
