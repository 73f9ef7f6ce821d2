package importer

import (
	"encoding/json"
	"fmt"
	"math"

	"seller-finance-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Service runs the four-step import pipeline: duplicate check, batch open,
// purge+write, finalize. Every run finalizes its batch, including on the
// failure paths, so nothing is left in processing.
type Service struct {
	ledger   *Ledger
	writer   *Writer
	deletion *DeletionResolver
	log      *zap.Logger
}

func NewService(ledger *Ledger, writer *Writer, deletion *DeletionResolver, log *zap.Logger) *Service {
	return &Service{ledger: ledger, writer: writer, deletion: deletion, log: log}
}

// CheckDuplicate exposes the ledger probe for the pre-upload duplicate
// dialog.
func (s *Service) CheckDuplicate(fileHash, reportKind, scopeKey, ownerID string) (DuplicateCheck, error) {
	return s.ledger.CheckDuplicate(fileHash, reportKind, scopeKey, ownerID)
}

// Run imports one file. Pre-batch rejections (bad request, duplicate,
// in-progress) come back as errors; once a batch is open every outcome lands
// in the ImportResult with the batch finalized.
func (s *Service) Run(req ImportRequest) (ImportResult, error) {
	if err := validateRequest(req); err != nil {
		return ImportResult{}, err
	}

	valid, rowErrors := validateRows(req.ReportKind, req.Rows)

	check, err := s.ledger.CheckDuplicate(req.SourceFileHash, req.ReportKind, req.ScopeKey, req.OwnerID)
	if err != nil {
		return ImportResult{}, err
	}

	var prior *models.ImportBatch
	switch check.Status {
	case DuplicateBlocked:
		override := req.Reimport ||
			req.Mode == models.ModeReplaceRange ||
			req.Mode == models.ModeReplaceAll
		if !override {
			return ImportResult{}, &DuplicateImportError{Prior: check.Prior}
		}
		prior = check.Prior
	case DuplicateStale:
		// Completed on paper, zero rows in reality. Safe to run again.
	}

	batch, err := s.ledger.Open(req, len(req.Rows))
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{
		BatchID:   batch.ID.String(),
		Rejected:  len(rowErrors),
		RowErrors: rowErrors,
	}

	finalized := false
	defer func() {
		if finalized {
			return
		}
		// Failure backstop: never leave the batch in pending or processing.
		if err := s.ledger.Finalize(batch.ID, models.BatchFailed,
			result.Inserted, result.Skipped, result.Rejected, result.Deleted, result.Error, nil); err != nil {
			s.log.Error("batch finalize failed", zap.String("batch_id", batch.ID.String()), zap.Error(err))
		}
	}()

	spec, err := s.deletion.Resolve(req, valid)
	if err != nil {
		result.Status = models.BatchFailed
		result.Error = err.Error()
		return result, nil
	}
	deleted, err := s.deletion.Execute(spec)
	if err != nil {
		// Abort before any new row is written: old and new must not mix.
		result.Status = models.BatchFailed
		result.Error = fmt.Sprintf("deletion failed: %v", err)
		return result, nil
	}
	result.Deleted = int(deleted)

	if err := s.ledger.BeginWrite(batch.ID); err != nil {
		result.Status = models.BatchFailed
		result.Error = err.Error()
		return result, nil
	}

	inserted, err := s.writer.Write(batch, valid)
	result.Inserted = inserted
	result.Skipped = len(valid) - inserted
	if err != nil {
		// Committed chunks stay committed; a retry of the same file will
		// skip them via the content hash and insert only the remainder.
		result.Status = models.BatchFailed
		result.Error = err.Error()
		return result, nil
	}

	// A reimport that inserted nothing leaves the prior batch as the owner of
	// the live rows; flipping it to replaced would orphan them from every
	// completed batch and silently drop duplicate protection.
	if prior != nil && result.Inserted > 0 {
		if err := s.ledger.Supersede(prior.ID); err != nil {
			result.Status = models.BatchFailed
			result.Error = fmt.Sprintf("superseding prior batch failed: %v", err)
			return result, nil
		}
	}

	if err := s.ledger.Finalize(batch.ID, models.BatchCompleted,
		result.Inserted, result.Skipped, result.Rejected, result.Deleted, "", purgeAudit(spec, result.Deleted)); err != nil {
		result.Status = models.BatchFailed
		result.Error = err.Error()
		return result, nil
	}
	finalized = true
	result.Status = models.BatchCompleted

	s.log.Info("import completed",
		zap.String("batch_id", batch.ID.String()),
		zap.String("report_kind", req.ReportKind),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("rejected", result.Rejected),
		zap.Int("deleted", result.Deleted))
	return result, nil
}

// purgeAudit records what a replace-mode import deleted, kept on the batch
// row for later inspection. Append imports carry no metadata.
func purgeAudit(spec DeletionSpec, deleted int) datatypes.JSON {
	if spec.None() {
		return nil
	}
	payload := map[string]interface{}{
		"purge_mode":  spec.Mode,
		"purged_rows": deleted,
	}
	if spec.Mode == models.ModeReplaceRange {
		payload["purge_from"] = spec.From.Format("2006-01-02")
		payload["purge_to"] = spec.To.Format("2006-01-02")
	}
	audit, _ := json.Marshal(payload)
	return audit
}

func validateRequest(req ImportRequest) error {
	if req.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if req.SourceFileHash == "" {
		return fmt.Errorf("source file hash is required")
	}
	if !validReportKinds()[req.ReportKind] {
		return fmt.Errorf("unknown report kind %q", req.ReportKind)
	}
	if !validModes()[req.Mode] {
		return fmt.Errorf("unknown import mode %q", req.Mode)
	}
	if req.Mode != "" && req.Mode != models.ModeAppend && req.ReportKind != models.ReportBankStatement {
		return fmt.Errorf("replace modes apply to bank statements only")
	}
	return nil
}

// validateRows rejects malformed rows one by one. A bad row never aborts the
// rest of the stream; it is tallied and reported with its reason.
func validateRows(reportKind string, rows []NormalizedRow) ([]NormalizedRow, []RowError) {
	valid := make([]NormalizedRow, 0, len(rows))
	var rowErrors []RowError

	for i, row := range rows {
		reason := ""
		switch {
		case math.IsNaN(row.Amount) || math.IsInf(row.Amount, 0):
			reason = "amount is not a number"
		case row.Amount == 0:
			reason = "amount is zero"
		case row.OccurredAt.IsZero():
			reason = "missing date"
		case reportKind != models.ReportBankStatement && row.ExternalID == "":
			reason = "missing external id"
		case reportKind != models.ReportBankStatement && row.Amount < 0:
			reason = "negative amount on a non-bank record"
		case row.Quantity < 0:
			reason = "negative quantity"
		}
		if reason != "" {
			rowErrors = append(rowErrors, RowError{Index: i, Reason: reason})
			continue
		}
		valid = append(valid, row)
	}
	return valid, rowErrors
}
