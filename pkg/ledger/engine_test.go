package ledger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"messbook/models"
)

// Engine tests run against a real Postgres and are opt-in, like the server
// integration tests: set DB_DSN_TEST=1 and DB_DSN to enable them.
func setupTestEngine(t *testing.T) *Engine {
	t.Helper()
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, m := range []any{
		&models.Member{}, &models.Contribution{}, &models.MealRecord{},
		&models.Expense{}, &models.Due{}, &models.MonthlySummary{},
		&models.MemberMonthBalance{}, &models.CarryforwardEntry{}, &models.GlobalFund{},
	} {
		if err := db.AutoMigrate(m); err != nil {
			t.Fatalf("migrate %T: %v", m, err)
		}
	}
	var fundCount int64
	db.Model(&models.GlobalFund{}).Count(&fundCount)
	if fundCount == 0 {
		if err := db.Create(&models.GlobalFund{}).Error; err != nil {
			t.Fatalf("seed fund: %v", err)
		}
	}
	// Clear any leftovers from previous runs for the months this file uses.
	for _, tbl := range []any{
		&models.Contribution{}, &models.MealRecord{}, &models.Expense{}, &models.Due{},
		&models.MonthlySummary{}, &models.MemberMonthBalance{}, &models.CarryforwardEntry{},
	} {
		db.Where("month LIKE ?", "2099-%").Delete(tbl)
	}
	return NewEngine(db)
}

func registerTestMember(t *testing.T, e *Engine, tag string) *models.Member {
	t.Helper()
	m, err := e.RegisterMember(RegisterMemberInput{
		FullName:     "Test " + tag,
		ShortName:    fmt.Sprintf("%s-%d", tag, time.Now().UnixNano()),
		ResidentType: models.ResidentTypeRoom,
		ActiveFrom:   "2099-01",
	})
	if err != nil {
		t.Fatalf("register member: %v", err)
	}
	return m
}

func TestContributionIsCumulative(t *testing.T) {
	e := setupTestEngine(t)
	m := registerTestMember(t, e, "cumul")

	if _, err := e.RecordContribution("2099-03", m.ID, 10000); err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	c, err := e.RecordContribution("2099-03", m.ID, 5000)
	if err != nil {
		t.Fatalf("second contribution: %v", err)
	}
	if c.AmountCents != 15000 {
		t.Fatalf("cumulative contribution = %d, want 15000", c.AmountCents)
	}
}

func TestMealCountReplacesDay(t *testing.T) {
	e := setupTestEngine(t)
	m := registerTestMember(t, e, "meals")

	if err := e.RecordMealCount("2099-03", m.ID, 5, 3); err != nil {
		t.Fatalf("first count: %v", err)
	}
	if err := e.RecordMealCount("2099-03", m.ID, 5, 2); err != nil {
		t.Fatalf("replace count: %v", err)
	}
	s, err := e.RecomputeMonth("2099-03")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if s.TotalMeals != 2 {
		t.Fatalf("day write should replace, total meals = %d, want 2", s.TotalMeals)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	e := setupTestEngine(t)
	m := registerTestMember(t, e, "idem")
	if _, err := e.RecordContribution("2099-04", m.ID, 20000); err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if err := e.RecordMealCount("2099-04", m.ID, 1, 7); err != nil {
		t.Fatalf("meal: %v", err)
	}
	s1, err := e.RecomputeMonth("2099-04")
	if err != nil {
		t.Fatalf("recompute 1: %v", err)
	}
	s2, err := e.RecomputeMonth("2099-04")
	if err != nil {
		t.Fatalf("recompute 2: %v", err)
	}
	if s1.TotalMeals != s2.TotalMeals || s1.TotalSpendingsCents != s2.TotalSpendingsCents || !s1.MealRate.Equal(s2.MealRate) {
		t.Fatalf("recompute not idempotent: %+v vs %+v", s1, s2)
	}
}

func TestPayLaterExcludedUntilResolved(t *testing.T) {
	e := setupTestEngine(t)
	m := registerTestMember(t, e, "paylater")
	if err := e.RecordMealCount("2099-05", m.ID, 2, 10); err != nil {
		t.Fatalf("meal: %v", err)
	}
	exp, err := e.RecordExpense("2099-05", ExpenseInput{Day: 2, AmountCents: 30000, Category: models.CategoryGroceries, PayLater: true})
	if err != nil {
		t.Fatalf("expense: %v", err)
	}
	s, err := e.Summary("2099-05")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalSpendingsCents != 0 {
		t.Fatalf("pending pay-later counted: spendings = %d, want 0", s.TotalSpendingsCents)
	}

	// Fund the ledger, resolve, and the expense must count.
	if err := e.Deposit(100000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	var due models.Due
	if err := e.db.Where("expense_id = ?", exp.ID).First(&due).Error; err != nil {
		t.Fatalf("load due: %v", err)
	}
	admin := Actor{Role: "administrator", Username: "admin"}
	if err := e.ResolveDue(admin, due.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	s, err = e.Summary("2099-05")
	if err != nil {
		t.Fatalf("summary after resolve: %v", err)
	}
	if s.TotalSpendingsCents != 30000 {
		t.Fatalf("resolved expense not counted: spendings = %d, want 30000", s.TotalSpendingsCents)
	}
}

func TestResolveDueInsufficientFundsLeavesLedgerUntouched(t *testing.T) {
	e := setupTestEngine(t)
	before, err := e.FundBalance()
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	huge := before.TotalMealFundCents + 1_000_000
	_, err = e.RecordExpense("2099-06", ExpenseInput{Day: 1, AmountCents: huge, Category: models.CategoryOther, PayLater: true})
	if err != nil {
		t.Fatalf("expense: %v", err)
	}
	var due models.Due
	if err := e.db.Where("month = ? AND amount_cents = ?", "2099-06", huge).First(&due).Error; err != nil {
		t.Fatalf("load due: %v", err)
	}
	admin := Actor{Role: "administrator", Username: "admin"}
	err = e.ResolveDue(admin, due.ID)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	after, err := e.FundBalance()
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if after.TotalMealFundCents != before.TotalMealFundCents || after.TotalSpendingsCents != before.TotalSpendingsCents {
		t.Fatalf("failed resolve changed the ledger: %+v -> %+v", before, after)
	}
	var reloaded models.Due
	if err := e.db.First(&reloaded, due.ID).Error; err != nil {
		t.Fatalf("reload due: %v", err)
	}
	if reloaded.PaymentStatus != models.DuePending {
		t.Fatalf("due status changed on failed resolve: %s", reloaded.PaymentStatus)
	}
}

func TestResolveDueRequiresAdmin(t *testing.T) {
	e := setupTestEngine(t)
	err := e.ResolveDue(Actor{Role: "manager"}, 1)
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestArchiveRequiresShortnameConfirmation(t *testing.T) {
	e := setupTestEngine(t)
	m := registerTestMember(t, e, "arch")
	admin := Actor{Role: "administrator", Username: "admin"}

	err := e.ArchiveMember(admin, m.ID, "wrong-name")
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected AuthorizationError on mismatch, got %v", err)
	}
	// Case-insensitive confirmation is accepted.
	if err := e.ArchiveMember(admin, m.ID, "  "+strings.ToUpper(m.ShortName)+" "); err != nil {
		t.Fatalf("archive with case-insensitive confirm: %v", err)
	}
	var reloaded models.Member
	if err := e.db.First(&reloaded, m.ID).Error; err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if reloaded.Status != models.MemberStatusArchived || reloaded.ArchiveFrom == "" {
		t.Fatalf("member not archived: %+v", reloaded)
	}
}

func TestCarryforwardChainsAcrossMonths(t *testing.T) {
	e := setupTestEngine(t)
	m := registerTestMember(t, e, "carry")

	// 2099-07: contributes 50000, eats 30 meals of a 30000 spend (sole eater).
	if _, err := e.RecordContribution("2099-07", m.ID, 50000); err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if err := e.RecordMealCount("2099-07", m.ID, 1, 30); err != nil {
		t.Fatalf("meal: %v", err)
	}
	if _, err := e.RecordExpense("2099-07", ExpenseInput{Day: 1, AmountCents: 30000, Category: models.CategoryGroceries}); err != nil {
		t.Fatalf("expense: %v", err)
	}
	entries, err := e.Carryforward("2099-07")
	if err != nil {
		t.Fatalf("carryforward: %v", err)
	}
	var mine *models.CarryforwardEntry
	for i := range entries {
		if entries[i].MemberID == m.ID {
			mine = &entries[i]
		}
	}
	if mine == nil {
		t.Fatalf("no entry for member %d", m.ID)
	}
	if mine.AwesCents != 20000 || mine.DuesCents != 0 {
		t.Fatalf("2099-07 entry: awes=%d dues=%d, want 20000/0", mine.AwesCents, mine.DuesCents)
	}

	// 2099-08: no events. The 20000 credit rolls forward.
	entries, err = e.Carryforward("2099-08")
	if err != nil {
		t.Fatalf("carryforward next month: %v", err)
	}
	mine = nil
	for i := range entries {
		if entries[i].MemberID == m.ID {
			mine = &entries[i]
		}
	}
	if mine == nil {
		t.Fatalf("no entry for member %d in 2099-08", m.ID)
	}
	if mine.PriorNetCents != 20000 || mine.AwesCents != 20000 {
		t.Fatalf("2099-08 entry: priorNet=%d awes=%d, want 20000/20000", mine.PriorNetCents, mine.AwesCents)
	}
}
