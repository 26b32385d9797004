// Package archive packages build outputs into compressed tarballs and
// unpacks them on install.
//
// Two formats are supported, chosen by the archive extension: tar.gz
// and tar.zst. Archives are reproducible: entries are sorted and carry a
// fixed modification time and owner, so identical inputs produce identical
// bytes and therefore identical checksums.
package archive
