package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// PurgeDocuments deletes documents uploaded before cutoff and reports how
// many were removed.
func PurgeDocuments(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
        DELETE FROM documents
         WHERE uploaded_at < $1
    `, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunDocumentCleaner purges documents older than retention every interval
// until ctx is done. It always returns nil so it can sit in a run group.
func RunDocumentCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rows, err := PurgeDocuments(ctx, db, time.Now().Add(-retention))
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error("failed to purge expired documents", zap.Error(err))
				continue
			}
			if rows > 0 {
				log.Info("purged expired documents", zap.Int64("removed", rows))
			}
		}
	}
}
