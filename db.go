package main

import (
	"log"
	"os"
	"strings"

	"messbook/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true). Any permission errors will be logged and ignored.
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	// Ensure the roles master table exists first and seed it so managers FK can be applied safely.
	if shouldMigrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			log.Printf("migration warning (roles): %v", err)
		}
	}
	seedRoles()

	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		for _, m := range []any{
			&models.Manager{},
			&models.Session{},
			&models.Member{},
			&models.Contribution{},
			&models.MealRecord{},
			&models.Expense{},
			&models.Due{},
			&models.MonthlySummary{},
			&models.MemberMonthBalance{},
			&models.CarryforwardEntry{},
			&models.GlobalFund{},
			&models.Receipt{},
		} {
			if err := db.AutoMigrate(m); err != nil {
				log.Printf("migration warning (%T): %v", m, err)
			}
		}
	}
	seedDB()
}

func seedRoles() {
	roles := []models.Role{{Name: "administrator", Description: "full access"}, {Name: "manager", Description: "regular mess manager"}}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}
}

func seedDB() {
	seedRoles()

	// The fund ledger is a singleton; create the row once so fund operations
	// can always lock it.
	var fundCount int64
	db.Model(&models.GlobalFund{}).Count(&fundCount)
	if fundCount == 0 {
		if err := db.Create(&models.GlobalFund{}).Error; err != nil {
			log.Printf("failed to seed global fund row: %v", err)
		}
	}

	// Check if admin manager exists
	var count int64
	db.Model(&models.Manager{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			log.Printf("failed to find administrator role: %v", err)
		}
		pin := os.Getenv("ADMIN_PIN")
		if pin == "" {
			pin = "123456"
		}
		rid := role.ID
		admin := models.Manager{Username: "admin", RoleID: &rid}
		hashedPIN, _ := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		admin.HashedPIN = hashedPIN
		db.Create(&admin)
		log.Println("Seeded admin manager: username=admin (set ADMIN_PIN to override the default PIN)")
	}

	ensureReceiptBase()
}

// ensureReceiptBase creates the base directory for stored receipt images.
func ensureReceiptBase() {
	base := receiptBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		log.Printf("failed to create receipt base dir %s: %v", base, err)
	}
}

// receiptBaseDir returns the base directory for receipt uploads (configurable via RECEIPT_BASE env)
func receiptBaseDir() string {
	if v := os.Getenv("RECEIPT_BASE"); v != "" {
		return v
	}
	return "receipts"
}
