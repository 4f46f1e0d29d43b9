// Package common holds helpers shared by several services.
//
// It builds the HTTP clients used for the release feed and the business
// endpoints, with a fixed User-Agent, optional timeout and optional
// certificate verification bypass.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
