package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeVersion(t *testing.T) {
	t.Parallel()

	for version, want := range map[string]bool{
		"b4501":    true,
		"v1.2.3":   true,
		"b[4501":   true,
		"":         false,
		"../b4501": false,
		`b\4501`:   false,
		"b 4501":   false,
	} {
		require.Equal(t, want, SafeVersion(version), version)
	}
}
