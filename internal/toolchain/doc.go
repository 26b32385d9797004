// Package toolchain drives the external compiler toolchain and source fetch.
//
// The CMake implementation configures and builds a CUDA project for a
// single target architecture. Git fetches the source tree for a version
// tag when it is not present locally. Both shell out through a Runner so
// tests can substitute a recording fake.
package toolchain
