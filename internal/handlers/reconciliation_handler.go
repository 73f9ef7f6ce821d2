package handlers

import (
	"errors"
	"net/http"
	"time"

	"seller-finance-backend/internal/services/reconciliation"
	"seller-finance-backend/internal/services/settlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReconciliationHandler struct {
	matcher    *reconciliation.Matcher
	settlement *settlement.Reconciler
}

func NewReconciliationHandler(matcher *reconciliation.Matcher, settlementRec *settlement.Reconciler) *ReconciliationHandler {
	return &ReconciliationHandler{matcher: matcher, settlement: settlementRec}
}

// AutoMatch runs the exact-amount matcher over a date window.
func (h *ReconciliationHandler) AutoMatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var payload struct {
		From string `json:"from"` // yyyy-mm-dd
		To   string `json:"to"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	from, err := time.Parse("2006-01-02", payload.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected yyyy-mm-dd"})
		return
	}
	to, err := time.Parse("2006-01-02", payload.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected yyyy-mm-dd"})
		return
	}
	// Inclusive end of day.
	to = to.Add(24*time.Hour - time.Second)

	result, err := h.matcher.AutoMatch(owner, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Suggest returns ranked manual-match candidates for one bank transaction.
func (h *ReconciliationHandler) Suggest(c *gin.Context) {
	if _, ok := ownerID(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	suggestions, err := h.matcher.Suggest(id)
	if err != nil {
		if errors.Is(err, reconciliation.ErrBankTransactionAlreadyMatched) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// ManualMatch creates a confirmed link between a bank transaction and an
// internal entity.
func (h *ReconciliationHandler) ManualMatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	var payload struct {
		EntityType string  `json:"entity_type"`
		EntityID   string  `json:"entity_id"`
		Amount     float64 `json:"amount"`
		Notes      string  `json:"notes"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	entityID, err := uuid.Parse(payload.EntityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity ID"})
		return
	}

	link, err := h.matcher.CreateManualMatch(owner, id, payload.EntityType, entityID, payload.Amount, payload.Notes)
	if err != nil {
		switch {
		case errors.Is(err, reconciliation.ErrBankTransactionAlreadyMatched),
			errors.Is(err, reconciliation.ErrEntityAlreadyMatched):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction matched", "match": link})
}

// Unmatch releases the active link on a bank transaction.
func (h *ReconciliationHandler) Unmatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	if err := h.matcher.Unmatch(owner, id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction unmatched"})
}

// ReconcileSettlements links a settlement batch back to its forecasts.
func (h *ReconciliationHandler) ReconcileSettlements(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	result, err := h.settlement.Reconcile(batchID, owner)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
