// Package config loads the submission settings: where to authenticate, which
// endpoints receive which staged folders, and how requests fan out.
//
// The file is YAML (config.yml) unless its extension is .toml. Key names keep
// the historical Spanish spelling so existing deployments keep working.
// The release feed used for self-update is deliberately not configurable here.
package config
