package journal

import (
	"go.uber.org/zap"

	"github.com/code-mvp/ledger/commit"
)

func logFields(j *Journal, c *commit.Commit) []zap.Field {
	return []zap.Field{
		zap.String("journal", j.id.String()),
		zap.String("commit", c.ID.Hex()),
		zap.Uint64("generation", c.Generation),
	}
}
