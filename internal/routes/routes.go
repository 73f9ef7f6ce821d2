package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "seller-finance-backend/internal/handlers"
	"seller-finance-backend/internal/repository"
	"seller-finance-backend/internal/services/importer"
	"seller-finance-backend/internal/services/reconciliation"
	"seller-finance-backend/internal/services/settlement"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, log *zap.Logger) {
	batchRepo := repository.NewImportBatchRepository(db)
	bankTxRepo := repository.NewBankTransactionRepository(db)
	recordRepo := repository.NewFinancialRecordRepository(db)
	matchRepo := repository.NewMatchLinkRepository(db)

	ledger := importer.NewLedger(batchRepo, bankTxRepo, recordRepo, log)
	writer := importer.NewWriter(bankTxRepo, recordRepo, log)
	deletion := importer.NewDeletionResolver(bankTxRepo, recordRepo, log)
	importService := importer.NewService(ledger, writer, deletion, log)

	matcher := reconciliation.NewMatcher(bankTxRepo, recordRepo, matchRepo, log)
	settlementRec := settlement.NewReconciler(recordRepo, batchRepo, log)

	importHandler := handler.NewImportHandler(importService, batchRepo, bankTxRepo)
	reconHandler := handler.NewReconciliationHandler(matcher, settlementRec)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Import pipeline routes
	imports := api.Group("/imports")
	imports.POST("/check", importHandler.CheckDuplicate)
	imports.POST("", importHandler.RunImport)
	imports.GET("/:batchId", importHandler.GetBatch)
	imports.GET("/:batchId/transactions", importHandler.ListBatchTransactions)
	imports.GET("/:batchId/stats", importHandler.GetBatchStats)

	// Reconciliation routes
	recon := api.Group("/reconciliation")
	recon.POST("/auto-match", reconHandler.AutoMatch)
	recon.POST("/settlements/:batchId", reconHandler.ReconcileSettlements)

	// Transaction-level routes
	tx := recon.Group("/transactions")
	tx.GET("/:id/suggestions", reconHandler.Suggest)
	tx.POST("/:id/match", reconHandler.ManualMatch)
	tx.DELETE("/:id/match", reconHandler.Unmatch)
}
