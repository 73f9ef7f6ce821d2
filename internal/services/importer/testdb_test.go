package importer

import (
	"path/filepath"
	"testing"
	"time"

	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "importer_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.ImportBatch{},
		&models.BankTransaction{},
		&models.FinancialRecord{},
		&models.MatchLink{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testStack struct {
	db       *gorm.DB
	batches  *repository.ImportBatchRepository
	bankTxs  *repository.BankTransactionRepository
	records  *repository.FinancialRecordRepository
	ledger   *Ledger
	writer   *Writer
	deletion *DeletionResolver
	service  *Service
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()

	batches := repository.NewImportBatchRepository(db)
	bankTxs := repository.NewBankTransactionRepository(db)
	records := repository.NewFinancialRecordRepository(db)

	ledger := NewLedger(batches, bankTxs, records, log)
	writer := NewWriter(bankTxs, records, log)
	deletion := NewDeletionResolver(bankTxs, records, log)

	return &testStack{
		db:       db,
		batches:  batches,
		bankTxs:  bankTxs,
		records:  records,
		ledger:   ledger,
		writer:   writer,
		deletion: deletion,
		service:  NewService(ledger, writer, deletion, log),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bankRow(d time.Time, desc string, amount float64, ref string) NormalizedRow {
	return NormalizedRow{
		OccurredAt:  d,
		Description: desc,
		Amount:      amount,
		Reference:   ref,
	}
}

func settlementRow(d time.Time, platform, externalID string, amount float64) NormalizedRow {
	return NormalizedRow{
		OccurredAt: d,
		Platform:   platform,
		ExternalID: externalID,
		Descriptor: "order " + externalID,
		Quantity:   1,
		Amount:     amount,
	}
}
