package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"messbook/models"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./messbook migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	// Purge expired or revoked refresh sessions once a day.
	c := cron.New()
	if _, err := c.AddFunc("0 3 * * *", purgeExpiredSessions); err != nil {
		log.Fatal("failed to add session purge job:", err)
	}
	c.Start()
	defer c.Stop()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	setupRoutes(r)

	r.Run(":8081")
}

func purgeExpiredSessions() {
	res := db.Where("expires_at < now() OR revoked = true").Delete(&models.Session{})
	if res.Error != nil {
		log.Printf("session purge failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("purged %d expired sessions", res.RowsAffected)
	}
}
