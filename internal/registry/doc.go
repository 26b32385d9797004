// Package registry talks to a GitHub-compatible release store.
//
// Releases are addressed by tag (or "latest") and carry one archive per
// target architecture plus a ".sha256" sidecar per archive. Read access
// (Reader) is used by the installer; write access (Publisher) is used by
// the builder and requires a token that can push to the repository.
package registry
