package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"docsum/types"
)

// LedgerFile is the persisted download ledger. It is read whole, mutated in
// memory and rewritten whole; there is no partial update or file locking.
type LedgerFile struct {
	path   string
	logger *slog.Logger
}

func NewLedgerFile(path string) *LedgerFile {
	return &LedgerFile{
		path:   path,
		logger: slog.Default(),
	}
}

func (l *LedgerFile) Path() string {
	return l.path
}

// Load returns the ledger contents. A missing or unparseable file yields an
// empty ledger; corruption is logged.
func (l *LedgerFile) Load() types.Ledger {
	ledger := make(types.Ledger)

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return ledger
	}
	if err != nil {
		l.logger.Error("[LEDGER] read failed, starting empty", "path", l.path, "error", err)
		return ledger
	}
	if err := json.Unmarshal(data, &ledger); err != nil {
		l.logger.Error("[LEDGER] corrupt ledger, starting empty", "path", l.path, "error", err)
		return make(types.Ledger)
	}
	if ledger == nil {
		// a literal null decodes without error
		l.logger.Error("[LEDGER] empty ledger document, starting empty", "path", l.path)
		return make(types.Ledger)
	}
	return ledger
}

func (l *LedgerFile) Save(ledger types.Ledger) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := writeFileAtomic(l.path, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
