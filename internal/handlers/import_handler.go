package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"seller-finance-backend/internal/fingerprint"
	"seller-finance-backend/internal/repository"
	"seller-finance-backend/internal/services/importer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ImportHandler struct {
	service *importer.Service
	batches *repository.ImportBatchRepository
	bankTxs *repository.BankTransactionRepository
}

func NewImportHandler(
	service *importer.Service,
	batches *repository.ImportBatchRepository,
	bankTxs *repository.BankTransactionRepository,
) *ImportHandler {
	return &ImportHandler{service: service, batches: batches, bankTxs: bankTxs}
}

// ownerID resolves the actor identity set by the auth layer upstream. The
// core trusts it as given.
func ownerID(c *gin.Context) (string, bool) {
	owner := c.GetHeader("X-Owner-ID")
	if owner == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing owner identity"})
		return "", false
	}
	return owner, true
}

// CheckDuplicate probes the batch ledger before an upload so the UI can show
// the prior import and offer replace/reimport.
func (h *ImportHandler) CheckDuplicate(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var payload struct {
		FileHash   string `json:"file_hash"`
		ReportKind string `json:"report_kind"`
		ScopeKey   string `json:"scope_key"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.FileHash == "" || payload.ReportKind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_hash and report_kind are required"})
		return
	}

	check, err := h.service.CheckDuplicate(payload.FileHash, payload.ReportKind, payload.ScopeKey, owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"status": check.Status}
	if check.Prior != nil {
		resp["prior"] = gin.H{
			"batch_id":       check.Prior.ID,
			"imported_at":    check.Prior.CreatedAt,
			"inserted_count": check.Prior.InsertedCount,
			"file_name":      check.Prior.FileName,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RunImport executes the full pipeline for one upload. The request is
// multipart: "file" carries the raw vendor bytes (hashed, never parsed here)
// and "rows" the normalized record stream produced upstream.
func (h *ImportHandler) RunImport(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	var rows []importer.NormalizedRow
	if rowsJSON := c.PostForm("rows"); rowsJSON != "" {
		if err := json.Unmarshal([]byte(rowsJSON), &rows); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rows payload"})
			return
		}
	}

	req := importer.ImportRequest{
		OwnerID:        owner,
		ReportKind:     c.PostForm("report_kind"),
		ScopeKey:       c.PostForm("scope_key"),
		Mode:           c.PostForm("mode"),
		FileName:       fileHeader.Filename,
		SourceFileHash: fingerprint.FileHash(raw),
		Reimport:       c.PostForm("reimport") == "true",
		Rows:           rows,
	}

	result, err := h.service.Run(req)
	if err != nil {
		var dup *importer.DuplicateImportError
		switch {
		case errors.As(err, &dup):
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
				"prior": gin.H{
					"batch_id":       dup.Prior.ID,
					"imported_at":    dup.Prior.CreatedAt,
					"inserted_count": dup.Prior.InsertedCount,
				},
			})
		case errors.Is(err, importer.ErrImportInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retry": true})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBatch returns one import batch row.
func (h *ImportHandler) GetBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	batch, err := h.batches.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	if batch.OwnerID != owner {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ListBatchTransactions pages the bank statement lines of a batch.
func (h *ImportHandler) ListBatchTransactions(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	batch, err := h.batches.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	if batch.OwnerID != owner {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}

	limit := 50
	txs, nextCursor, hasMore, err := h.bankTxs.ListByBatch(id, c.Query("status"), c.Query("cursor"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"next_cursor":  nextCursor,
		"has_more":     hasMore,
	})
}

// GetBatchStats rolls up per-status counts and sums for a batch.
func (h *ImportHandler) GetBatchStats(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	batch, err := h.batches.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	if batch.OwnerID != owner {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}

	rows, err := h.bankTxs.StatsByBatch(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats := gin.H{"total": int64(0), "total_amount": float64(0)}
	var totalCount int64
	var totalSum float64
	for _, r := range rows {
		totalCount += r.Count
		totalSum += r.Sum
		stats[r.Status+"_count"] = r.Count
		stats[r.Status+"_sum"] = r.Sum
	}
	stats["total"] = totalCount
	stats["total_amount"] = totalSum
	c.JSON(http.StatusOK, stats)
}
