package importer

import (
	"errors"
	"fmt"
	"time"

	"seller-finance-backend/internal/models"
)

// chunkSize bounds each upsert to stay under backend request limits. A var
// so tests can shrink it and drive the multi-chunk path with small streams.
var chunkSize = 500

// inProgressWindow is the advisory guard against double-submission: a batch
// for the same fingerprint tuple still processing inside this window blocks a
// second open. Best effort, not a distributed lock.
const inProgressWindow = 30 * time.Minute

// NormalizedRow is one record from an already-parsed vendor report. Vendor
// spreadsheet layouts are handled upstream; by the time a row reaches this
// package it is typed and ordered.
type NormalizedRow struct {
	Platform    string    `json:"platform"`
	ExternalID  string    `json:"external_id"`
	Descriptor  string    `json:"descriptor"`
	Quantity    int       `json:"quantity"`
	Amount      float64   `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
}

// ImportRequest carries one uploaded file through the pipeline. The caller
// computes SourceFileHash from the raw upload bytes before parsing.
type ImportRequest struct {
	OwnerID        string
	ReportKind     string
	ScopeKey       string
	Mode           string // bank statements only; empty means append
	FileName       string
	SourceFileHash string
	Reimport       bool // explicit user override of a completed duplicate
	Rows           []NormalizedRow
}

// RowError is a per-row validation rejection. It never aborts the batch.
type RowError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportResult is the structured outcome of one import run. Nothing in this
// package throws across the boundary; failures land here with the batch
// already finalized.
type ImportResult struct {
	BatchID   string     `json:"batch_id"`
	Status    string     `json:"status"`
	Inserted  int        `json:"inserted"`
	Skipped   int        `json:"skipped"`
	Rejected  int        `json:"rejected"`
	Deleted   int        `json:"deleted"`
	RowErrors []RowError `json:"row_errors,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ErrImportInProgress is the advisory-lock hit: wait and retry, not fatal.
var ErrImportInProgress = errors.New("an import for this file is already in progress")

// DuplicateImportError blocks a repeat of a completed, non-empty import until
// the user explicitly chooses reimport or replace.
type DuplicateImportError struct {
	Prior *models.ImportBatch
}

func (e *DuplicateImportError) Error() string {
	return fmt.Sprintf("file already imported on %s (%d rows); use reimport or a replace mode to override",
		e.Prior.CreatedAt.Format("2006-01-02 15:04"), e.Prior.InsertedCount)
}

func validModes() map[string]bool {
	return map[string]bool{
		"":                      true,
		models.ModeAppend:       true,
		models.ModeReplaceRange: true,
		models.ModeReplaceAll:   true,
	}
}

func validReportKinds() map[string]bool {
	return map[string]bool{
		models.ReportBankStatement: true,
		models.ReportSettlement:    true,
		models.ReportForecast:      true,
		models.ReportAds:           true,
		models.ReportExpense:       true,
		models.ReportWalletTopup:   true,
	}
}
