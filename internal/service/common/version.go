package common

import "strings"

// UnsafeVersionChars are rejected in versions because versions become path
// components of artifact names, checkouts and installation keys.
const UnsafeVersionChars = `/\ `

// SafeVersion reports whether version can be embedded in a file name.
func SafeVersion(version string) bool {
	return version != "" && !strings.ContainsAny(version, UnsafeVersionChars)
}
