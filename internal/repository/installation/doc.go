// Package installation persists installation receipts.
//
// A receipt records which release asset was installed for a
// (version, architecture) key, its verified checksum, the exposed entry
// points and who installed it. The FileRepository stores one YAML
// receipt per key under the installation root.
package installation
