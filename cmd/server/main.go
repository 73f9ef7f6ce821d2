package main

import (
	"log"
	"time"

	"seller-finance-backend/internal/config"
	"seller-finance-backend/internal/logger"
	"seller-finance-backend/internal/models"
	"seller-finance-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	zlog := logger.New("seller-finance-backend")
	defer zlog.Sync()

	db := config.InitDB()

	db.AutoMigrate(
		&models.ImportBatch{},
		&models.BankTransaction{},
		&models.FinancialRecord{},
		&models.MatchLink{},
	)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Owner-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, zlog)

	r.Run(":8080")
}
