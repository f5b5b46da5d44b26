package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"messbook/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_manager <username> <pin> [role]")
		os.Exit(2)
	}
	username := os.Args[1]
	pin := os.Args[2]
	roleName := "manager"
	if len(os.Args) > 3 {
		roleName = os.Args[3]
	}

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	// ensure role exists
	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		role = models.Role{Name: roleName}
		db.Create(&role)
	}

	// check existing
	var existing models.Manager
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("manager %s already exists (id=%d)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	rid := role.ID
	manager := models.Manager{Username: username, HashedPIN: hpw, RoleID: &rid}
	if err := db.Create(&manager).Error; err != nil {
		log.Fatalf("failed to create manager: %v", err)
	}
	fmt.Printf("created manager %s id=%d role=%s\n", username, manager.ID, roleName)
}
