package importer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"seller-finance-backend/internal/fingerprint"
	"seller-finance-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bankRequest(fileHash, mode string, rows []NormalizedRow) ImportRequest {
	return ImportRequest{
		OwnerID:        "owner-1",
		ReportKind:     models.ReportBankStatement,
		ScopeKey:       "acct-1",
		Mode:           mode,
		FileName:       "statement.xlsx",
		SourceFileHash: fileHash,
		Rows:           rows,
	}
}

func januaryRows() []NormalizedRow {
	return []NormalizedRow{
		bankRow(day(2026, 1, 5), "TIKTOK SETTLEMENT", 1500, "R1"),
		bankRow(day(2026, 1, 10), "SHOPEE SETTLEMENT", 2300.50, "R2"),
		bankRow(day(2026, 1, 20), "SUPPLIER PAYMENT", -800, "R3"),
	}
}

func TestImportFirstRun(t *testing.T) {
	s := newTestStack(t)

	result, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	require.NoError(t, err)

	assert.Equal(t, models.BatchCompleted, result.Status)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 0, result.Skipped)

	batch, err := s.batches.GetByID(uuid.MustParse(result.BatchID))
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, batch.Status)
	assert.Equal(t, 3, batch.InsertedCount)
}

func TestIdempotentReimport(t *testing.T) {
	s := newTestStack(t)

	first, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	require.NoError(t, err)
	require.Equal(t, 3, first.Inserted)

	// Same file again in append mode is blocked with the prior's metadata.
	_, err = s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	var dup *DuplicateImportError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, 3, dup.Prior.InsertedCount)

	// Explicit reimport runs, but every row collides on content hash:
	// nothing inserted, nothing double-counted.
	req := bankRequest("hash-jan", models.ModeAppend, januaryRows())
	req.Reimport = true
	second, err := s.service.Run(req)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, second.Status)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Skipped)

	var total int64
	s.db.Model(&models.BankTransaction{}).Count(&total)
	assert.Equal(t, int64(3), total)

	// Nothing was inserted, so the prior batch keeps owning the live rows and
	// stays completed.
	prior, err := s.batches.GetByID(dup.Prior.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, prior.Status)
}

func TestReimportKeepsDuplicateProtection(t *testing.T) {
	s := newTestStack(t)

	first, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	require.NoError(t, err)
	require.Equal(t, 3, first.Inserted)

	req := bankRequest("hash-jan", models.ModeAppend, januaryRows())
	req.Reimport = true
	second, err := s.service.Run(req)
	require.NoError(t, err)
	require.Equal(t, 0, second.Inserted)

	// A plain repeat after the reimport must still be blocked: the file's
	// rows persist, even though the newest completed batch inserted nothing.
	_, err = s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	var dup *DuplicateImportError
	require.True(t, errors.As(err, &dup), "expected DuplicateImportError, got %v", err)
	assert.Equal(t, 3, dup.Prior.InsertedCount)

	var total int64
	s.db.Model(&models.BankTransaction{}).Count(&total)
	assert.Equal(t, int64(3), total)
}

func TestReplaceReimportSupersedesPrior(t *testing.T) {
	s := newTestStack(t)

	first, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	require.NoError(t, err)

	// Corrected file, same raw bytes window: replace_all purges and rewrites,
	// so the prior batch hands ownership to the new one.
	req := bankRequest("hash-jan", models.ModeReplaceAll, januaryRows())
	second, err := s.service.Run(req)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Deleted)
	assert.Equal(t, 3, second.Inserted)

	prior, err := s.batches.GetByID(uuid.MustParse(first.BatchID))
	require.NoError(t, err)
	assert.Equal(t, models.BatchReplaced, prior.Status)

	// And the tuple is still protected against a plain repeat.
	_, err = s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	var dup *DuplicateImportError
	require.True(t, errors.As(err, &dup))
}

func TestContentDedupAcrossOverlappingFiles(t *testing.T) {
	s := newTestStack(t)

	var fileA []NormalizedRow
	for i := 0; i < 100; i++ {
		fileA = append(fileA, bankRow(day(2026, 1, 1).AddDate(0, 0, i%28), "SALE", float64(1000+i), "A"))
	}
	first, err := s.service.Run(bankRequest("hash-a", models.ModeAppend, fileA))
	require.NoError(t, err)
	require.Equal(t, 100, first.Inserted)

	// File B re-exports rows 51-100 of file A plus 50 new ones.
	fileB := append(append([]NormalizedRow{}, fileA[50:]...), func() []NormalizedRow {
		var fresh []NormalizedRow
		for i := 0; i < 50; i++ {
			fresh = append(fresh, bankRow(day(2026, 2, 1).AddDate(0, 0, i%28), "SALE", float64(5000+i), "B"))
		}
		return fresh
	}()...)

	second, err := s.service.Run(bankRequest("hash-b", models.ModeAppend, fileB))
	require.NoError(t, err)
	assert.Equal(t, 50, second.Inserted)
	assert.Equal(t, 50, second.Skipped)

	var total int64
	s.db.Model(&models.BankTransaction{}).Count(&total)
	assert.Equal(t, int64(150), total)
}

func TestReplaceRangeScopesToFileWindow(t *testing.T) {
	s := newTestStack(t)

	_, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	require.NoError(t, err)

	febRows := []NormalizedRow{
		bankRow(day(2026, 2, 3), "TIKTOK SETTLEMENT", 1800, "R4"),
		bankRow(day(2026, 2, 14), "ADS CHARGE", -250, "R5"),
	}
	_, err = s.service.Run(bankRequest("hash-feb", models.ModeReplaceRange, febRows))
	require.NoError(t, err)

	// Corrected February file replaces only February.
	febFixed := []NormalizedRow{
		bankRow(day(2026, 2, 3), "TIKTOK SETTLEMENT", 1850, "R4"),
		bankRow(day(2026, 2, 14), "ADS CHARGE", -250, "R5"),
		bankRow(day(2026, 2, 20), "SHOPEE SETTLEMENT", 900, "R6"),
	}
	result, err := s.service.Run(bankRequest("hash-feb-v2", models.ModeReplaceRange, febFixed))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 3, result.Inserted)

	// The purge audit lands on the batch row.
	batch, err := s.batches.GetByID(uuid.MustParse(result.BatchID))
	require.NoError(t, err)
	var audit map[string]interface{}
	require.NoError(t, json.Unmarshal(batch.Metadata, &audit))
	assert.Equal(t, models.ModeReplaceRange, audit["purge_mode"])
	assert.Equal(t, float64(2), audit["purged_rows"])
	assert.Equal(t, "2026-02-03", audit["purge_from"])
	assert.Equal(t, "2026-02-20", audit["purge_to"])

	var janCount int64
	s.db.Model(&models.BankTransaction{}).
		Where("transaction_date < ?", day(2026, 2, 1)).
		Count(&janCount)
	assert.Equal(t, int64(3), janCount, "January rows must survive a February replace_range")
}

func TestReplaceAllPurgesScope(t *testing.T) {
	s := newTestStack(t)

	_, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, januaryRows()))
	require.NoError(t, err)

	// Another account's rows are untouchable.
	otherReq := bankRequest("hash-other", models.ModeAppend, []NormalizedRow{
		bankRow(day(2026, 1, 7), "OTHER ACCOUNT", 99, "X1"),
	})
	otherReq.ScopeKey = "acct-2"
	_, err = s.service.Run(otherReq)
	require.NoError(t, err)

	result, err := s.service.Run(bankRequest("hash-full", models.ModeReplaceAll, []NormalizedRow{
		bankRow(day(2026, 3, 1), "FRESH START", 10, "F1"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Deleted)

	var acct2 int64
	s.db.Model(&models.BankTransaction{}).Where("scope_key = ?", "acct-2").Count(&acct2)
	assert.Equal(t, int64(1), acct2)
}

func TestVerifiedCountOverEcho(t *testing.T) {
	s := newTestStack(t)

	rows := januaryRows()

	// One incoming row already persists under an older batch: the write call
	// will silently drop it, and the final count must come from live data.
	pre := models.BankTransaction{
		ID:              uuid.New(),
		OwnerID:         "owner-1",
		ScopeKey:        "acct-1",
		ImportBatchID:   uuid.New(),
		TransactionDate: rows[0].OccurredAt,
		Description:     rows[0].Description,
		Amount:          rows[0].Amount,
		ReferenceNumber: rows[0].Reference,
		ContentHash: fingerprint.BankLineHash(
			"owner-1", "acct-1",
			rows[0].OccurredAt.Format("2006-01-02"),
			rows[0].Description, rows[0].Reference, rows[0].Amount,
		),
		Status:    models.TxUnmatched,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.db.Create(&pre).Error)

	result, err := s.service.Run(bankRequest("hash-jan", models.ModeAppend, rows))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted, "inserted must reflect persisted rows, not the declared stream")
	assert.Equal(t, 1, result.Skipped)
}

func TestValidationRejectsRowsNotBatch(t *testing.T) {
	s := newTestStack(t)

	rows := []NormalizedRow{
		bankRow(day(2026, 1, 5), "GOOD ROW", 100, "R1"),
		bankRow(day(2026, 1, 6), "ZERO AMOUNT", 0, "R2"),
		bankRow(time.Time{}, "NO DATE", 50, "R3"),
		bankRow(day(2026, 1, 8), "ANOTHER GOOD ROW", -75, "R4"),
	}

	result, err := s.service.Run(bankRequest("hash-mixed", models.ModeAppend, rows))
	require.NoError(t, err)

	assert.Equal(t, models.BatchCompleted, result.Status)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, result.Rejected)
	require.Len(t, result.RowErrors, 2)
	assert.Equal(t, 1, result.RowErrors[0].Index)
	assert.Equal(t, "amount is zero", result.RowErrors[0].Reason)
	assert.Equal(t, 2, result.RowErrors[1].Index)
	assert.Equal(t, "missing date", result.RowErrors[1].Reason)
}

func TestDeletionFailureFinalizesFailed(t *testing.T) {
	s := newTestStack(t)

	// replace_range with zero usable rows cannot bound its purge window; the
	// run must fail but still finalize the batch out of processing.
	result, err := s.service.Run(bankRequest("hash-empty", models.ModeReplaceRange, []NormalizedRow{
		bankRow(time.Time{}, "REJECTED", 100, "R1"),
	}))
	require.NoError(t, err)
	assert.Equal(t, models.BatchFailed, result.Status)
	assert.NotEmpty(t, result.Error)

	batch, err := s.batches.GetByID(uuid.MustParse(result.BatchID))
	require.NoError(t, err)
	assert.Equal(t, models.BatchFailed, batch.Status)
}

func TestSettlementImportCreatesRecords(t *testing.T) {
	s := newTestStack(t)

	rows := []NormalizedRow{
		settlementRow(day(2026, 2, 1), "tiktok", "T1", 1500),
		settlementRow(day(2026, 2, 1), "tiktok", "T2", 820.25),
	}
	req := ImportRequest{
		OwnerID:        "owner-1",
		ReportKind:     models.ReportSettlement,
		FileName:       "settlement.xlsx",
		SourceFileHash: "hash-settle",
		Rows:           rows,
	}

	result, err := s.service.Run(req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	recs, err := s.records.FindByBatch(uuid.MustParse(result.BatchID))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.RecordSettlement, recs[0].RecordType)
	assert.Equal(t, models.RecordActive, recs[0].Status)
}

func TestForecastImportStartsUnsettled(t *testing.T) {
	s := newTestStack(t)

	req := ImportRequest{
		OwnerID:        "owner-1",
		ReportKind:     models.ReportForecast,
		FileName:       "forecast.xlsx",
		SourceFileHash: "hash-forecast",
		Rows:           []NormalizedRow{settlementRow(day(2026, 2, 10), "shopee", "S9", 430)},
	}
	result, err := s.service.Run(req)
	require.NoError(t, err)

	recs, err := s.records.FindByBatch(uuid.MustParse(result.BatchID))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.RecordUnsettled, recs[0].Status)
}

func TestReplaceModeRejectedForNonBankReports(t *testing.T) {
	s := newTestStack(t)

	req := ImportRequest{
		OwnerID:        "owner-1",
		ReportKind:     models.ReportSettlement,
		Mode:           models.ModeReplaceAll,
		SourceFileHash: "hash-x",
		Rows:           []NormalizedRow{settlementRow(day(2026, 2, 1), "tiktok", "T1", 10)},
	}
	_, err := s.service.Run(req)
	require.Error(t, err)
}
