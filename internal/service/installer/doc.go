// Package installer fetches a published artifact for the local architecture,
// verifies it against its checksum sidecar and installs it into an isolated
// per (version, architecture) directory.
package installer
