//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"

	"github.com/oshokin/archpack/internal/config"
	"github.com/oshokin/archpack/internal/logger"
)

// ApplyLogLevel sets the global level from the flag, falling back to the configured one.
func ApplyLogLevel(flagLevel, configured string) error {
	level := flagLevel
	if level == "" {
		level = configured
	}

	if level == "" {
		return nil
	}

	if !logger.SetLevelFromString(level) {
		return fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, level)
	}

	return nil
}
