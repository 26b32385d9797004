// Package builder implements the idempotent build-or-skip orchestrator.
//
// A build moves through RESOLVE_INPUTS, CHECK_EXISTING, then either SKIP
// or CLEAN_AND_BUILD, COMPILE, PACKAGE and HASH, optionally PUBLISH, and
// finally DONE. A cached artifact is only reused after it passes
// verification; a failed verification purges it and rebuilds. Publishing
// credentials are checked before any compute starts.
package builder
