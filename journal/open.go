package journal

import (
	"fmt"

	"github.com/rustyeddy/fillbook/config"
)

// Open builds the journal named by cfg.Type.
func Open(cfg config.JournalConfig) (Journal, error) {
	switch cfg.Type {
	case "csv":
		return NewCSV(cfg.RealizedFile, cfg.SnapshotsFile)
	case "sqlite":
		return NewSQLite(cfg.DBPath)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
