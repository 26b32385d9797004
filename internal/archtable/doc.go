// Package archtable loads and validates the architecture pattern table.
//
// The table is maintained outside the code as YAML or JSON with comments.
// Loading always validates, and the same validation is exposed on its own
// so a table can be checked before it is deployed.
package archtable
