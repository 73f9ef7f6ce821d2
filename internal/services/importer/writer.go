package importer

import (
	"time"

	"seller-finance-backend/internal/fingerprint"
	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer persists a normalized row stream in chunks with insert-or-ignore
// semantics on the content hash. Chunks go out sequentially; a chunk failure
// stops submission but leaves committed chunks committed. The content-hash
// dedup makes a retry of the same file skip them and insert only the rest.
//
// The inserted count is never taken from the write echo. Some backends
// coalesce or misreport conflict outcomes, so the writer re-counts the rows
// actually persisted under the batch id after the last chunk.
type Writer struct {
	bankTxs *repository.BankTransactionRepository
	records *repository.FinancialRecordRepository
	log     *zap.Logger
}

func NewWriter(
	bankTxs *repository.BankTransactionRepository,
	records *repository.FinancialRecordRepository,
	log *zap.Logger,
) *Writer {
	return &Writer{bankTxs: bankTxs, records: records, log: log}
}

// Write persists the rows for a batch and returns the verified inserted
// count. On a chunk error the count reflects whatever actually landed.
func (w *Writer) Write(batch *models.ImportBatch, rows []NormalizedRow) (int, error) {
	var writeErr error
	if batch.ReportKind == models.ReportBankStatement {
		writeErr = w.writeBankLines(batch, rows)
	} else {
		writeErr = w.writeRecords(batch, rows)
	}

	live, countErr := w.liveCount(batch)
	if writeErr != nil {
		return int(live), writeErr
	}
	if countErr != nil {
		return 0, countErr
	}
	return int(live), nil
}

func (w *Writer) writeBankLines(batch *models.ImportBatch, rows []NormalizedRow) error {
	lines := make([]models.BankTransaction, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, models.BankTransaction{
			ID:              uuid.New(),
			OwnerID:         batch.OwnerID,
			ScopeKey:        batch.ScopeKey,
			ImportBatchID:   batch.ID,
			TransactionDate: row.OccurredAt,
			Description:     row.Description,
			Amount:          row.Amount,
			ReferenceNumber: row.Reference,
			ContentHash: fingerprint.BankLineHash(
				batch.OwnerID,
				batch.ScopeKey,
				row.OccurredAt.Format("2006-01-02"),
				row.Description,
				row.Reference,
				row.Amount,
			),
			Status:    models.TxUnmatched,
			CreatedAt: time.Now(),
		})
	}

	for start := 0; start < len(lines); start += chunkSize {
		end := start + chunkSize
		if end > len(lines) {
			end = len(lines)
		}
		if err := w.bankTxs.InsertIgnoreConflicts(lines[start:end]); err != nil {
			w.log.Error("bank statement chunk write failed",
				zap.String("batch_id", batch.ID.String()),
				zap.Int("chunk_start", start),
				zap.Error(err))
			return err
		}
	}
	return nil
}

func (w *Writer) writeRecords(batch *models.ImportBatch, rows []NormalizedRow) error {
	recordType := recordTypeFor(batch.ReportKind)
	status := models.RecordActive
	if recordType == models.RecordForecast {
		status = models.RecordUnsettled
	}

	recs := make([]models.FinancialRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, models.FinancialRecord{
			ID:            uuid.New(),
			OwnerID:       batch.OwnerID,
			RecordType:    recordType,
			ImportBatchID: batch.ID,
			Platform:      row.Platform,
			ExternalID:    row.ExternalID,
			Descriptor:    row.Descriptor,
			Quantity:      row.Quantity,
			Amount:        row.Amount,
			OccurredAt:    row.OccurredAt,
			Status:        status,
			ContentHash: fingerprint.RecordHash(
				batch.OwnerID,
				row.Platform,
				row.ExternalID,
				row.Descriptor,
				row.Quantity,
				row.Amount,
			),
			CreatedAt: time.Now(),
		})
	}

	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		if err := w.records.InsertIgnoreConflicts(recs[start:end]); err != nil {
			w.log.Error("record chunk write failed",
				zap.String("batch_id", batch.ID.String()),
				zap.String("record_type", recordType),
				zap.Int("chunk_start", start),
				zap.Error(err))
			return err
		}
	}
	return nil
}

func (w *Writer) liveCount(batch *models.ImportBatch) (int64, error) {
	if batch.ReportKind == models.ReportBankStatement {
		return w.bankTxs.CountByBatch(batch.ID)
	}
	return w.records.CountByBatch(batch.ID)
}
