package importer

import (
	"time"

	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Duplicate check outcomes.
const (
	DuplicateNone    = "none"
	DuplicateBlocked = "blocked"
	DuplicateStale   = "stale"
)

// DuplicateCheck reports whether a fingerprint tuple was already imported.
// Stale means a completed batch row exists but zero rows actually persist
// under it (a prior attempt died between batch creation and data write), so
// it is safe to ignore.
type DuplicateCheck struct {
	Status string
	Prior  *models.ImportBatch
}

// Ledger is the single source of truth for "has this file been processed".
// One ImportBatch row per attempt; the advisory in-progress window lives
// entirely inside this type so it can be swapped for a real lease later.
type Ledger struct {
	batches *repository.ImportBatchRepository
	bankTxs *repository.BankTransactionRepository
	records *repository.FinancialRecordRepository
	log     *zap.Logger
}

func NewLedger(
	batches *repository.ImportBatchRepository,
	bankTxs *repository.BankTransactionRepository,
	records *repository.FinancialRecordRepository,
	log *zap.Logger,
) *Ledger {
	return &Ledger{batches: batches, bankTxs: bankTxs, records: records, log: log}
}

// CheckDuplicate looks up a completed batch for the tuple and verifies it
// against live data, not the stored inserted_count. The counter can desync
// from reality on partial failure; the records table cannot. Live rows are
// counted across every batch ever opened for the tuple: the file's data can
// persist under a batch other than the newest completed one (a zero-insert
// reimport, for example), and it still blocks a plain repeat.
func (l *Ledger) CheckDuplicate(fileHash, reportKind, scopeKey, ownerID string) (DuplicateCheck, error) {
	prior, err := l.batches.FindCompletedByFingerprint(fileHash, reportKind, scopeKey, ownerID)
	if err != nil {
		return DuplicateCheck{}, err
	}
	if prior == nil {
		return DuplicateCheck{Status: DuplicateNone}, nil
	}

	ids, err := l.batches.IDsByFingerprint(fileHash, reportKind, scopeKey, ownerID)
	if err != nil {
		return DuplicateCheck{}, err
	}
	live, err := l.liveCountAcross(reportKind, ids)
	if err != nil {
		return DuplicateCheck{}, err
	}
	if live == 0 {
		l.log.Info("stale completed batch, zero live rows",
			zap.String("batch_id", prior.ID.String()),
			zap.String("file_hash", fileHash))
		return DuplicateCheck{Status: DuplicateStale, Prior: prior}, nil
	}
	return DuplicateCheck{Status: DuplicateBlocked, Prior: prior}, nil
}

// Open creates the batch row in pending before any data write. Rejects with
// ErrImportInProgress if another batch for the tuple opened within the
// advisory window.
func (l *Ledger) Open(req ImportRequest, declaredRowCount int) (*models.ImportBatch, error) {
	cutoff := time.Now().Add(-inProgressWindow)
	active, err := l.batches.FindActiveSince(req.SourceFileHash, req.ReportKind, req.ScopeKey, req.OwnerID, cutoff)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrImportInProgress
	}

	batch := &models.ImportBatch{
		ID:             uuid.New(),
		OwnerID:        req.OwnerID,
		SourceFileHash: req.SourceFileHash,
		ReportKind:     req.ReportKind,
		ScopeKey:       req.ScopeKey,
		FileName:       req.FileName,
		RowCount:       declaredRowCount,
		Status:         models.BatchPending,
		ImportMode:     req.Mode,
		CreatedAt:      time.Now(),
	}
	if err := l.batches.Create(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// BeginWrite flips the batch from pending to processing once the purge is
// done and rows are about to land.
func (l *Ledger) BeginWrite(batchID uuid.UUID) error {
	return l.batches.MarkProcessing(batchID)
}

// Finalize always runs, success or failure, so no batch is left pending or
// processing.
func (l *Ledger) Finalize(batchID uuid.UUID, status string, inserted, skipped, rejected, deleted int, errMsg string, metadata datatypes.JSON) error {
	return l.batches.Finalize(batchID, status, inserted, skipped, rejected, deleted, errMsg, metadata)
}

// Supersede marks a prior completed batch replaced. Called together with the
// replacing batch's completed finalize so the one-completed-batch invariant
// holds.
func (l *Ledger) Supersede(priorID uuid.UUID) error {
	return l.batches.MarkReplaced(priorID)
}

// VerifiedCount is the live persisted row count for a batch, the number the
// writer reports instead of the insert echo.
func (l *Ledger) VerifiedCount(reportKind string, batchID uuid.UUID) (int64, error) {
	return l.liveCount(reportKind, batchID)
}

func (l *Ledger) liveCount(reportKind string, batchID uuid.UUID) (int64, error) {
	if reportKind == models.ReportBankStatement {
		return l.bankTxs.CountByBatch(batchID)
	}
	return l.records.CountByBatch(batchID)
}

func (l *Ledger) liveCountAcross(reportKind string, batchIDs []uuid.UUID) (int64, error) {
	if reportKind == models.ReportBankStatement {
		return l.bankTxs.CountByBatches(batchIDs)
	}
	return l.records.CountByBatches(batchIDs)
}
