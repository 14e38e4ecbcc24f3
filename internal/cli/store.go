package cli

import (
	"ledger/internal/csvimport"
	"ledger/internal/services"
)

// oneShotPreviews sizes the preview store for commands that never park an
// upload across requests.
const oneShotPreviews = 1

// openLedger opens the configured store without event publishing; events
// are emitted by the serving process only.
func (a *app) openLedger() (*services.LedgerService, error) {
	repo, err := InitSQLite(a.logger, a.cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	previews := csvimport.NewPreviewStore(oneShotPreviews, a.cfg.ImportPreviewTTL)
	return services.NewLedgerService(repo, previews, nil, a.logger), nil
}
