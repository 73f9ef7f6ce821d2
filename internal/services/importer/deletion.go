package importer

import (
	"fmt"
	"time"

	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/repository"

	"go.uber.org/zap"
)

// DeletionSpec says which previously persisted rows must go before the new
// write. Zero-valued Mode (or append) deletes nothing.
type DeletionSpec struct {
	Mode       string
	OwnerID    string
	ReportKind string
	ScopeKey   string
	From       time.Time
	To         time.Time
}

// None reports whether the spec purges anything.
func (s DeletionSpec) None() bool {
	return s.Mode == "" || s.Mode == models.ModeAppend
}

// DeletionResolver computes and executes the purge for replace-mode imports.
// Deletion completes and is counted before any new row is written; a failed
// purge aborts the import so old and new rows never mix.
type DeletionResolver struct {
	bankTxs *repository.BankTransactionRepository
	records *repository.FinancialRecordRepository
	log     *zap.Logger
}

func NewDeletionResolver(
	bankTxs *repository.BankTransactionRepository,
	records *repository.FinancialRecordRepository,
	log *zap.Logger,
) *DeletionResolver {
	return &DeletionResolver{bankTxs: bankTxs, records: records, log: log}
}

// Resolve bounds the purge. replace_range covers exactly the inclusive
// [min, max] date span of the incoming rows, so reimporting January never
// touches February.
func (d *DeletionResolver) Resolve(req ImportRequest, rows []NormalizedRow) (DeletionSpec, error) {
	spec := DeletionSpec{
		Mode:       req.Mode,
		OwnerID:    req.OwnerID,
		ReportKind: req.ReportKind,
		ScopeKey:   req.ScopeKey,
	}

	switch req.Mode {
	case "", models.ModeAppend, models.ModeReplaceAll:
		return spec, nil
	case models.ModeReplaceRange:
		if len(rows) == 0 {
			return spec, fmt.Errorf("replace_range needs at least one row to bound the purge window")
		}
		min, max := rows[0].OccurredAt, rows[0].OccurredAt
		for _, row := range rows[1:] {
			if row.OccurredAt.Before(min) {
				min = row.OccurredAt
			}
			if row.OccurredAt.After(max) {
				max = row.OccurredAt
			}
		}
		spec.From, spec.To = min, max
		return spec, nil
	default:
		return spec, fmt.Errorf("unknown import mode %q", req.Mode)
	}
}

// Execute runs the purge and returns the deleted row count for batch audit.
func (d *DeletionResolver) Execute(spec DeletionSpec) (int64, error) {
	if spec.None() {
		return 0, nil
	}

	var deleted int64
	var err error

	switch {
	case spec.ReportKind == models.ReportBankStatement && spec.Mode == models.ModeReplaceRange:
		deleted, err = d.bankTxs.DeleteByScopeAndRange(spec.OwnerID, spec.ScopeKey, spec.From, spec.To)
	case spec.ReportKind == models.ReportBankStatement && spec.Mode == models.ModeReplaceAll:
		deleted, err = d.bankTxs.DeleteByScope(spec.OwnerID, spec.ScopeKey)
	case spec.Mode == models.ModeReplaceRange:
		deleted, err = d.records.DeleteByTypeAndRange(spec.OwnerID, recordTypeFor(spec.ReportKind), spec.From, spec.To)
	case spec.Mode == models.ModeReplaceAll:
		deleted, err = d.records.DeleteByType(spec.OwnerID, recordTypeFor(spec.ReportKind))
	}
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		d.log.Info("purged rows before replace import",
			zap.String("mode", spec.Mode),
			zap.String("report_kind", spec.ReportKind),
			zap.String("scope_key", spec.ScopeKey),
			zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// recordTypeFor maps a report kind onto the financial record type it carries.
func recordTypeFor(reportKind string) string {
	switch reportKind {
	case models.ReportSettlement:
		return models.RecordSettlement
	case models.ReportForecast:
		return models.RecordForecast
	case models.ReportAds:
		return models.RecordAds
	case models.ReportExpense:
		return models.RecordExpense
	case models.ReportWalletTopup:
		return models.RecordWalletTopup
	default:
		return reportKind
	}
}
