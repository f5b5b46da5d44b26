package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"messbook/models"

	"golang.org/x/crypto/bcrypt"
)

var pinRE = regexp.MustCompile(`^\d{4,8}$`)

// RegisterManager creates a manager account with a bcrypt-hashed PIN.
func RegisterManager(username, pin string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username required")
	}
	if !pinRE.MatchString(pin) {
		return fmt.Errorf("pin must be 4-8 digits")
	}
	// pre-check existing (optimistic)
	var existing models.Manager
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return fmt.Errorf("manager already exists")
	}
	hashedPIN, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	// ensure role exists (idempotent)
	var role models.Role
	if err := db.Where("name = ?", "manager").First(&role).Error; err != nil {
		role = models.Role{Name: "manager", Description: "regular mess manager"}
		if err2 := db.Where("name = ?", role.Name).FirstOrCreate(&role).Error; err2 != nil {
			return fmt.Errorf("failed to ensure manager role: %v", err2)
		}
	}
	rid := role.ID
	manager := models.Manager{Username: username, HashedPIN: hashedPIN, RoleID: &rid}
	if err := db.Create(&manager).Error; err != nil {
		if isUniqueConstraintError(err) { // race condition after initial check
			return fmt.Errorf("manager already exists")
		}
		return err
	}
	return nil
}

// Authenticate checks username + PIN and returns the manager on success.
func Authenticate(username, pin string) (models.Manager, error) {
	username = strings.TrimSpace(username)
	var manager models.Manager
	if err := db.Where("username = ?", username).First(&manager).Error; err != nil {
		return models.Manager{}, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(manager.HashedPIN, []byte(pin)); err != nil {
		return models.Manager{}, fmt.Errorf("invalid credentials")
	}
	return manager, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

// createAndStoreSession generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreSession(managerID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	s := models.Session{ManagerID: managerID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&s).Error; err != nil {
		return "", err
	}
	return token, nil
}

// findSessionByRaw looks up a session record by raw refresh token string.
func findSessionByRaw(token string) (*models.Session, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var s models.Session
	if err := db.Where("token_hash = ?", th).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
