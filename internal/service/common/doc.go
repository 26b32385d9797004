// Package common holds helpers shared by the builder and installer services.
//
// It resolves the target architecture from an explicit identifier, a
// descriptor or the local hardware inventory, loads the architecture table
// with overlap warnings, and detects the current system actor
// (hostname/username) for installation receipts.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
