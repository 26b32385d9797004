// Package checksum computes and verifies sha256 digests of artifacts and
// reads and writes the detached ".sha256" sidecar files published next to them.
package checksum
