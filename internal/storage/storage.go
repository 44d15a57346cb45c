package storage

import (
	"time"

	"go.uber.org/zap"

	"vaultDeposit/internal/model"
)

// Journal defines a sink for step transitions.
type Journal interface {
	PutStepBatch(records []model.StepRecord) error
}

// Recorder returns a step observer that appends every transition to each
// journal. Write failures are logged and never interrupt the sequence.
func Recorder(chainID uint64, logger *zap.Logger, journals ...Journal) func(sessionID string, step model.TransactionStep) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(sessionID string, step model.TransactionStep) {
		record := model.NewStepRecord(sessionID, chainID, step, time.Now())
		for _, journal := range journals {
			if journal == nil {
				continue
			}
			if err := journal.PutStepBatch([]model.StepRecord{record}); err != nil {
				logger.Warn("journal step", zap.String("session", sessionID), zap.Int("step", step.Index), zap.Error(err))
			}
		}
	}
}
