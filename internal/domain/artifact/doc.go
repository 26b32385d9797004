// Package artifact contains the core domain types of the archpack pipeline.
//
// It defines architecture families and the resolved Target, the
// deterministic artifact Name used both to skip redundant builds and to
// select release assets, and the Release, Asset and Installation records
// exchanged between the builder, the release store and the installer.
package artifact
