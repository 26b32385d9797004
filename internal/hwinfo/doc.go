// Package hwinfo enumerates local accelerators as human-readable descriptors.
//
// Descriptors are the raw device names (for example
// "NVIDIA GeForce RTX 4090") that the resolver matches against the
// architecture table. Several sources are supported and can be chained.
package hwinfo
