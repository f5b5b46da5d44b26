package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"messbook/models"
	"messbook/pkg/ledger"
	"messbook/pkg/receipt"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var engine *ledger.Engine

func setupRoutes(r *gin.Engine) {
	engine = ledger.NewEngine(db)

	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)

	authGroup.POST("/members", createMemberHandler)
	authGroup.GET("/members", listMembersHandler)
	authGroup.POST("/members/:id/archive", archiveMemberHandler)

	authGroup.POST("/contributions", recordContributionHandler)
	authGroup.POST("/meals", recordMealHandler)

	authGroup.POST("/expenses", recordExpenseHandler)
	authGroup.GET("/expenses", listExpensesHandler)
	authGroup.POST("/expenses/:id/receipt", uploadReceiptHandler)

	authGroup.GET("/dues", listDuesHandler)
	authGroup.POST("/dues/:id/resolve", resolveDueHandler)

	authGroup.GET("/summary/:month", getSummaryHandler)
	authGroup.POST("/summary/:month/recompute", recomputeSummaryHandler)
	authGroup.GET("/balances/:month", getBalancesHandler)
	authGroup.GET("/carryforward/:month", getCarryforwardHandler)

	authGroup.GET("/fund", getFundHandler)
	authGroup.POST("/fund/deposit", depositFundHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": usernameVal.(string)})
}

// actorFromContext builds the ledger actor for the authenticated manager.
func actorFromContext(c *gin.Context) (ledger.Actor, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return ledger.Actor{}, false
	}
	uname := unameVal.(string)
	var manager models.Manager
	if err := db.Where("username = ?", uname).First(&manager).Error; err != nil {
		return ledger.Actor{}, false
	}
	role, _ := c.Get("role")
	roleName, _ := role.(string)
	return ledger.Actor{ManagerID: manager.ID, Username: manager.Username, Role: roleName}, true
}

// respondLedgerError maps the engine's error taxonomy onto HTTP statuses.
// The typed errors carry month/member/amount context, so err.Error() is
// already a usable user-facing message.
func respondLedgerError(c *gin.Context, err error) {
	var (
		validation   *ledger.ValidationError
		notFound     *ledger.NotFoundError
		authz        *ledger.AuthorizationError
		insufficient *ledger.InsufficientFundsError
		conflict     *ledger.ConcurrentUpdateError
		inconsistent *ledger.InconsistentStateError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &authz):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retry": true})
	case errors.As(err, &inconsistent):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func monthParam(c *gin.Context) (ledger.Month, bool) {
	m, err := ledger.ParseMonth(c.Param("month"))
	if err != nil {
		respondLedgerError(c, err)
		return "", false
	}
	return m, true
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		PIN      string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterManager(req.Username, req.PIN); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "manager registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		PIN      string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	manager, err := Authenticate(req.Username, req.PIN)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	roleName := roleNameFor(&manager)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": manager.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreSession(manager.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

func roleNameFor(m *models.Manager) string {
	if m.RoleID == nil {
		return ""
	}
	var r models.Role
	if err := db.First(&r, *m.RoleID).Error; err != nil {
		return ""
	}
	return r.Name
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := findSessionByRaw(req.RefreshToken)
	if err != nil || s.Revoked || time.Now().After(s.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var manager models.Manager
	if err := db.First(&manager, s.ManagerID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "manager not found"})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": manager.Username,
		"role":     roleNameFor(&manager),
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.Session{}).Where("id = ?", s.ID).Update("revoked", true)
	newToken, err := createAndStoreSession(manager.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newToken})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := findSessionByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	s.Revoked = true
	if err := db.Save(s).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func createMemberHandler(c *gin.Context) {
	var req struct {
		FullName     string `json:"full_name" binding:"required"`
		ShortName    string `json:"short_name" binding:"required"`
		ResidentType string `json:"resident_type" binding:"required"`
		ActiveFrom   string `json:"active_from"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	member, err := engine.RegisterMember(ledger.RegisterMemberInput{
		FullName:     req.FullName,
		ShortName:    req.ShortName,
		ResidentType: req.ResidentType,
		ActiveFrom:   req.ActiveFrom,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// listMembersHandler returns members active in the requested month (default: current).
func listMembersHandler(c *gin.Context) {
	monthStr := c.Query("month")
	month := ledger.CurrentMonth()
	if monthStr != "" {
		m, err := ledger.ParseMonth(monthStr)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		month = m
	}
	members, err := engine.ListActiveMembers(month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// archiveMemberHandler archives a member. Requires the administrator role
// and a case-insensitive shortname confirmation.
func archiveMemberHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "manager not found"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}
	var req struct {
		ConfirmShortName string `json:"confirm_short_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := engine.ArchiveMember(actor, uint(id), req.ConfirmShortName); err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member archived"})
}

func recordContributionHandler(c *gin.Context) {
	var req struct {
		Month       string `json:"month" binding:"required"`
		MemberID    uint   `json:"member_id" binding:"required"`
		AmountCents int64  `json:"amount_cents" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	month, err := ledger.ParseMonth(req.Month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	contrib, err := engine.RecordContribution(month, req.MemberID, req.AmountCents)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, contrib)
}

func recordMealHandler(c *gin.Context) {
	var req struct {
		Month    string `json:"month" binding:"required"`
		MemberID uint   `json:"member_id" binding:"required"`
		Day      int    `json:"day" binding:"required"`
		Count    *int64 `json:"count" binding:"required"` // pointer so 0 clears a day
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	month, err := ledger.ParseMonth(req.Month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	if err := engine.RecordMealCount(month, req.MemberID, req.Day, *req.Count); err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "meal count recorded"})
}

func recordExpenseHandler(c *gin.Context) {
	var req struct {
		Month       string `json:"month" binding:"required"`
		Day         int    `json:"day" binding:"required"`
		AmountCents int64  `json:"amount_cents" binding:"required"`
		Category    string `json:"category" binding:"required"`
		ShopperID   *uint  `json:"shopper_id"`
		Title       string `json:"title"`
		PayLater    bool   `json:"pay_later"`
		DueDate     string `json:"due_date"`
		Priority    string `json:"priority"`
		ContactInfo string `json:"contact_info"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	month, err := ledger.ParseMonth(req.Month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	exp, err := engine.RecordExpense(month, ledger.ExpenseInput{
		Day:         req.Day,
		AmountCents: req.AmountCents,
		Category:    req.Category,
		ShopperID:   req.ShopperID,
		Title:       req.Title,
		PayLater:    req.PayLater,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		ContactInfo: req.ContactInfo,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func listExpensesHandler(c *gin.Context) {
	month, err := ledger.ParseMonth(c.Query("month"))
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	expenses, err := engine.ListExpenses(month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

// uploadReceiptHandler stores a receipt image for an expense and runs OCR to
// suggest the amount. OCR failure is not fatal here: the upload itself is
// the record, the suggestion just helps spot typos.
func uploadReceiptHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expense id"})
		return
	}
	var exp models.Expense
	if err := db.First(&exp, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	dir := filepath.Join(receiptBaseDir(), fmt.Sprintf("expense_%d", exp.ID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	fullPath := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	rec := models.Receipt{
		ExpenseID:   exp.ID,
		FileName:    file.Filename,
		StorePath:   fullPath,
		ContentType: file.Header.Get("Content-Type"),
	}
	if cents, raw, err := receipt.ExtractAmountCents(fullPath); err == nil {
		rec.SuggestedAmountCents = cents
		log.Printf("receipt OCR for expense %d: %d cents from %q", exp.ID, cents, raw)
	} else {
		log.Printf("receipt OCR for expense %d: %v", exp.ID, err)
	}
	if err := db.Create(&rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                     rec.ID,
		"suggested_amount_cents": rec.SuggestedAmountCents,
		"amount_mismatch":        rec.SuggestedAmountCents > 0 && rec.SuggestedAmountCents != exp.AmountCents,
	})
}

func listDuesHandler(c *gin.Context) {
	dues, err := engine.ListDues(c.Query("month"))
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, dues)
}

func resolveDueHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "manager not found"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due id"})
		return
	}
	if err := engine.ResolveDue(actor, uint(id)); err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "due resolved"})
}

func getSummaryHandler(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	summary, err := engine.Summary(month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func recomputeSummaryHandler(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	summary, err := engine.RecomputeMonth(month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func getBalancesHandler(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	balances, err := engine.MemberBalances(month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func getCarryforwardHandler(c *gin.Context) {
	month, ok := monthParam(c)
	if !ok {
		return
	}
	entries, err := engine.Carryforward(month)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func getFundHandler(c *gin.Context) {
	fund, err := engine.FundBalance()
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, fund)
}

func depositFundHandler(c *gin.Context) {
	var req struct {
		AmountCents int64 `json:"amount_cents" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := engine.Deposit(req.AmountCents); err != nil {
		respondLedgerError(c, err)
		return
	}
	fund, err := engine.FundBalance()
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, fund)
}
