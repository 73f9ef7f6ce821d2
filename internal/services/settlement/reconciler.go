package settlement

import (
	"fmt"
	"time"

	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result tallies one settlement reconciliation run.
type Result struct {
	ReconciledCount         int      `json:"reconciled_count"`
	AlreadySettledCount     int      `json:"already_settled_count"`
	NotFoundInForecastCount int      `json:"not_found_in_forecast_count"`
	Errors                  []string `json:"errors,omitempty"`
}

// Reconciler links newly imported settlement records back to previously
// forecasted (on-hold) ones by (platform, external transaction id) and flips
// the forecasts to settled in one bulk update. Independent of the bank
// statement matcher.
type Reconciler struct {
	records *repository.FinancialRecordRepository
	batches *repository.ImportBatchRepository
	log     *zap.Logger
}

func NewReconciler(
	records *repository.FinancialRecordRepository,
	batches *repository.ImportBatchRepository,
	log *zap.Logger,
) *Reconciler {
	return &Reconciler{records: records, batches: batches, log: log}
}

// Reconcile processes every settlement in the batch. Forecasts are fetched in
// a single bulk query keyed by external id (forecast volumes can be large;
// one query per row would not survive them) and disambiguated by platform in
// memory. Settlements with no prior forecast are counted, not fatal.
// Re-running over an already-settled batch reconciles zero rows and is not an
// error.
func (r *Reconciler) Reconcile(batchID uuid.UUID, ownerID string) (Result, error) {
	var result Result

	batch, err := r.batches.GetByID(batchID)
	if err != nil {
		return result, err
	}
	if batch.OwnerID != ownerID {
		return result, fmt.Errorf("batch not found for owner")
	}
	if batch.ReportKind != models.ReportSettlement {
		return result, fmt.Errorf("batch %s is %s, not a settlement import", batchID, batch.ReportKind)
	}

	settlements, err := r.records.FindByBatch(batchID)
	if err != nil {
		return result, err
	}
	if len(settlements) == 0 {
		return result, nil
	}

	externalIDs := make([]string, 0, len(settlements))
	for _, s := range settlements {
		externalIDs = append(externalIDs, s.ExternalID)
	}
	forecasts, err := r.records.FindForecastsByExternalIDs(ownerID, externalIDs)
	if err != nil {
		return result, err
	}

	lookup := make(map[string]*models.FinancialRecord, len(forecasts))
	for i := range forecasts {
		f := &forecasts[i]
		lookup[f.Platform+"::"+f.ExternalID] = f
	}

	var toSettle []uuid.UUID
	for _, s := range settlements {
		forecast, ok := lookup[s.Platform+"::"+s.ExternalID]
		if !ok {
			result.NotFoundInForecastCount++
			continue
		}
		if forecast.Status == models.RecordSettled {
			result.AlreadySettledCount++
			continue
		}
		toSettle = append(toSettle, forecast.ID)
	}

	// One bulk update for the whole run. The shared settled_at is the run
	// time, not each settlement's own timestamp; per-row times would need
	// row-by-row updates.
	updated, err := r.records.BulkMarkSettled(toSettle, time.Now())
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	result.ReconciledCount = int(updated)

	r.log.Info("settlement reconciliation finished",
		zap.String("batch_id", batchID.String()),
		zap.Int("reconciled", result.ReconciledCount),
		zap.Int("not_found_in_forecast", result.NotFoundInForecastCount),
		zap.Int("already_settled", result.AlreadySettledCount))
	return result, nil
}
