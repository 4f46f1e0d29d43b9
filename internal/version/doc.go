// Package version exposes build metadata for miapp.
//
// Version, Commit and BuildTime are injected at build time via -ldflags -X.
// A binary built without them reports the "dev" version, which the updater
// treats as "never replace me".
package version
