// Package integration holds cross-package tests: a full release update cycle
// and a submission run driven by a configuration file.
package integration
