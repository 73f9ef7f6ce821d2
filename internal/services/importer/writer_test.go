package importer

import (
	"errors"
	"testing"

	"seller-finance-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// shrinkChunks drops the chunk size so a handful of rows spans several
// insert calls.
func shrinkChunks(t *testing.T, size int) {
	t.Helper()
	orig := chunkSize
	chunkSize = size
	t.Cleanup(func() { chunkSize = orig })
}

func fiveBankRows() []NormalizedRow {
	return []NormalizedRow{
		bankRow(day(2026, 1, 5), "TIKTOK SETTLEMENT", 1500, "R1"),
		bankRow(day(2026, 1, 6), "SHOPEE SETTLEMENT", 2300.50, "R2"),
		bankRow(day(2026, 1, 7), "SUPPLIER PAYMENT", -800, "R3"),
		bankRow(day(2026, 1, 8), "ADS CHARGE", -250, "R4"),
		bankRow(day(2026, 1, 9), "WALLET TOPUP", 1000, "R5"),
	}
}

func TestWriterSplitsStreamAcrossChunks(t *testing.T) {
	s := newTestStack(t)
	shrinkChunks(t, 2)

	result, err := s.service.Run(bankRequest("hash-chunks", models.ModeAppend, fiveBankRows()))
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, result.Status)
	assert.Equal(t, 5, result.Inserted)
	assert.Equal(t, 0, result.Skipped)

	var total int64
	s.db.Model(&models.BankTransaction{}).Count(&total)
	assert.Equal(t, int64(5), total)
}

func TestChunkFailureKeepsCommittedRows(t *testing.T) {
	s := newTestStack(t)
	shrinkChunks(t, 2)

	// Fail every statement-line insert after the first, simulating the
	// connection dying mid-stream.
	inserts := 0
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").
		Register("drop_conn_after_first_chunk", func(tx *gorm.DB) {
			if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "bank_transactions" {
				return
			}
			inserts++
			if inserts > 1 {
				tx.AddError(errors.New("connection reset by peer"))
			}
		}))

	result, err := s.service.Run(bankRequest("hash-chunks", models.ModeAppend, fiveBankRows()))
	require.NoError(t, err)
	assert.Equal(t, models.BatchFailed, result.Status)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 2, result.Inserted, "inserted must count the committed chunk, from live data")
	assert.Equal(t, 3, result.Skipped)

	batch, err := s.batches.GetByID(uuid.MustParse(result.BatchID))
	require.NoError(t, err)
	assert.Equal(t, models.BatchFailed, batch.Status)
	assert.Equal(t, 2, batch.InsertedCount)

	var total int64
	s.db.Model(&models.BankTransaction{}).Count(&total)
	assert.Equal(t, int64(2), total, "committed chunk survives the failure")

	// With the connection back, a retry of the same file skips the committed
	// rows on content hash and inserts only the remainder.
	require.NoError(t, s.db.Callback().Create().Remove("drop_conn_after_first_chunk"))

	retry, err := s.service.Run(bankRequest("hash-chunks", models.ModeAppend, fiveBankRows()))
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, retry.Status)
	assert.Equal(t, 3, retry.Inserted)
	assert.Equal(t, 2, retry.Skipped)

	s.db.Model(&models.BankTransaction{}).Count(&total)
	assert.Equal(t, int64(5), total)
}
