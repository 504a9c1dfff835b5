package diag

import (
	"fmt"

	"github.com/petervdpas/mailshell/internal/config"

	logging "github.com/ipfs/go-log/v2"
)

// ApplyLevels sets the global log level, then any per-subsystem overrides.
// Unknown subsystems are reported but do not stop the rest from applying.
func ApplyLevels(c config.Log) error {
	if c.Level != "" {
		lvl, err := logging.LevelFromString(c.Level)
		if err != nil {
			return fmt.Errorf("log level %q: %w", c.Level, err)
		}
		logging.SetAllLoggers(lvl)
	}

	var firstErr error
	for name, level := range c.Subsystems {
		if err := logging.SetLogLevel(name, level); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("log level for %s: %w", name, err)
		}
	}
	return firstErr
}
