package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"messbook/models"
)

// Engine implements the reconciliation core over a gorm-managed store.
// Every write that changes a month's totals recomputes and persists that
// month's summary and balances inside the same transaction, so readers
// never observe a stale rate or a partial write.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Actor identifies the manager performing a command. It is passed in
// explicitly by the HTTP layer; the engine holds no ambient session state.
type Actor struct {
	ManagerID uint
	Username  string
	Role      string
}

func (a Actor) IsAdmin() bool { return a.Role == "administrator" }

// RegisterMemberInput carries the fields needed to register a member.
type RegisterMemberInput struct {
	FullName     string
	ShortName    string
	ResidentType string
	ActiveFrom   string // "YYYY-MM", defaults to the current month
}

// RegisterMember creates a new member. ActiveFrom defaults to the current
// month when empty.
func (e *Engine) RegisterMember(in RegisterMemberInput) (*models.Member, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.ShortName = strings.TrimSpace(in.ShortName)
	if in.FullName == "" {
		return nil, &ValidationError{Field: "full_name", Reason: "required"}
	}
	if in.ShortName == "" {
		return nil, &ValidationError{Field: "short_name", Reason: "required"}
	}
	if in.ResidentType != models.ResidentTypeRoom && in.ResidentType != models.ResidentTypeDining {
		return nil, &ValidationError{Field: "resident_type", Reason: "must be room or dining"}
	}
	activeFrom := CurrentMonth()
	if in.ActiveFrom != "" {
		m, err := ParseMonth(in.ActiveFrom)
		if err != nil {
			return nil, err
		}
		activeFrom = m
	}
	member := models.Member{
		FullName:     in.FullName,
		ShortName:    in.ShortName,
		ResidentType: in.ResidentType,
		ActiveFrom:   activeFrom.String(),
		Status:       models.MemberStatusActive,
	}
	if err := e.db.Create(&member).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &ValidationError{Field: "short_name", Reason: "already taken"}
		}
		return nil, err
	}
	return &member, nil
}

// ArchiveMember marks a member archived from the current month on. The
// actor must be an administrator and must confirm the member's shortname
// (case-insensitive). Historical event records are never deleted.
func (e *Engine) ArchiveMember(actor Actor, memberID uint, confirmShortname string) error {
	if !actor.IsAdmin() {
		return &AuthorizationError{Reason: "archive requires administrator role"}
	}
	var member models.Member
	if err := e.db.First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Kind: "member", Key: fmt.Sprint(memberID)}
		}
		return err
	}
	if member.Status == models.MemberStatusArchived {
		return &ValidationError{Field: "member", Reason: "already archived"}
	}
	if !strings.EqualFold(strings.TrimSpace(confirmShortname), member.ShortName) {
		return &AuthorizationError{Reason: "shortname confirmation does not match"}
	}
	member.Status = models.MemberStatusArchived
	member.ArchiveFrom = CurrentMonth().String()
	return e.db.Save(&member).Error
}

// ListActiveMembers returns the members eligible for the month, sorted by
// full name. Eligibility is evaluated fresh on every call: a member active
// in March may be archived by April.
func (e *Engine) ListActiveMembers(month Month) ([]models.Member, error) {
	return e.eligibleMembers(e.db, month)
}

func (e *Engine) eligibleMembers(tx *gorm.DB, month Month) ([]models.Member, error) {
	var all []models.Member
	if err := tx.Find(&all).Error; err != nil {
		return nil, err
	}
	eligible := make([]models.Member, 0, len(all))
	for _, m := range all {
		if m.EligibleFor(month.String()) {
			eligible = append(eligible, m)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].FullName < eligible[j].FullName })
	return eligible, nil
}

// memberEligibleOrErr loads a member and checks the eligibility window.
func (e *Engine) memberEligibleOrErr(tx *gorm.DB, month Month, memberID uint) (*models.Member, error) {
	var member models.Member
	if err := tx.First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: "member", Key: fmt.Sprint(memberID)}
		}
		return nil, err
	}
	if !member.EligibleFor(month.String()) {
		return nil, &ValidationError{Field: "member_id", Reason: fmt.Sprintf("member %s is not active in %s", member.ShortName, month)}
	}
	return &member, nil
}

// RecordContribution adds amountCents onto the member's cumulative total for
// the month. The add is guarded by optimistic versioning; a lost race
// surfaces as ConcurrentUpdateError instead of a silently dropped update.
// The payment is a fund-in event, so the global fund is credited in the same
// transaction, and the month is recomputed atomically.
func (e *Engine) RecordContribution(month Month, memberID uint, amountCents int64) (*models.Contribution, error) {
	if amountCents <= 0 {
		return nil, &ValidationError{Field: "amount_cents", Reason: "must be positive"}
	}
	var out models.Contribution
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if _, err := e.memberEligibleOrErr(tx, month, memberID); err != nil {
			return err
		}
		var row models.Contribution
		err := tx.Where("month = ? AND member_id = ?", month.String(), memberID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Contribution{Month: month.String(), MemberID: memberID, AmountCents: amountCents}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return &ConcurrentUpdateError{Entity: "contribution", Key: contribKey(month, memberID)}
				}
				return err
			}
		case err != nil:
			return err
		default:
			res := tx.Model(&models.Contribution{}).
				Where("id = ? AND version = ?", row.ID, row.Version).
				Updates(map[string]any{
					"amount_cents": row.AmountCents + amountCents,
					"version":      row.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &ConcurrentUpdateError{Entity: "contribution", Key: contribKey(month, memberID)}
			}
			row.AmountCents += amountCents
			row.Version++
		}
		if err := creditFund(tx, amountCents); err != nil {
			return err
		}
		if _, err := e.recomputeMonthTx(tx, month); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func contribKey(month Month, memberID uint) string {
	return fmt.Sprintf("%s/%d", month, memberID)
}

// RecordMealCount sets the member's meal count for one day of the month,
// replacing any previous value for that day, and recomputes the month.
func (e *Engine) RecordMealCount(month Month, memberID uint, day int, count int64) error {
	if day < 1 || day > 31 {
		return &ValidationError{Field: "day", Reason: "must be 1-31"}
	}
	if count < 0 {
		return &ValidationError{Field: "count", Reason: "must not be negative"}
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		if _, err := e.memberEligibleOrErr(tx, month, memberID); err != nil {
			return err
		}
		rec := models.MealRecord{Month: month.String(), MemberID: memberID, Day: day, Count: count}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "month"}, {Name: "member_id"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		_, err := e.recomputeMonthTx(tx, month)
		return err
	})
}

// ExpenseInput carries the fields needed to record an expense.
type ExpenseInput struct {
	Day         int
	AmountCents int64
	Category    string
	ShopperID   *uint
	Title       string
	PayLater    bool
	DueDate     string
	Priority    string
	ContactInfo string
}

// RecordExpense records a spend for the month. An immediate expense is paid
// from the global fund in the same transaction and fails with
// InsufficientFundsError when the fund cannot cover it (the caller may
// resubmit it as pay-later). A pay-later expense creates a pending due and
// leaves the fund untouched until resolution; it is also excluded from the
// month's spending total until then.
func (e *Engine) RecordExpense(month Month, in ExpenseInput) (*models.Expense, error) {
	if in.AmountCents <= 0 {
		return nil, &ValidationError{Field: "amount_cents", Reason: "must be positive"}
	}
	if in.Day < 1 || in.Day > 31 {
		return nil, &ValidationError{Field: "day", Reason: "must be 1-31"}
	}
	if in.Category != models.CategoryGroceries && in.Category != models.CategoryOther {
		return nil, &ValidationError{Field: "category", Reason: "must be groceries or other"}
	}
	var out models.Expense
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if in.ShopperID != nil {
			if _, err := e.memberEligibleOrErr(tx, month, *in.ShopperID); err != nil {
				return err
			}
		}
		exp := models.Expense{
			Month:       month.String(),
			Day:         in.Day,
			AmountCents: in.AmountCents,
			Category:    in.Category,
			ShopperID:   in.ShopperID,
			Title:       in.Title,
			PayLater:    in.PayLater,
			DueDate:     in.DueDate,
			Priority:    in.Priority,
			ContactInfo: in.ContactInfo,
		}
		if err := tx.Create(&exp).Error; err != nil {
			return err
		}
		if in.PayLater {
			due := models.Due{
				Month:         month.String(),
				AmountCents:   in.AmountCents,
				ExpenseID:     exp.ID,
				ShopperID:     in.ShopperID,
				PaymentStatus: models.DuePending,
				DueDate:       in.DueDate,
				Priority:      in.Priority,
				ContactInfo:   in.ContactInfo,
			}
			if err := tx.Create(&due).Error; err != nil {
				return err
			}
		} else {
			if err := debitFund(tx, in.AmountCents); err != nil {
				return err
			}
		}
		if _, err := e.recomputeMonthTx(tx, month); err != nil {
			return err
		}
		out = exp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecomputeMonth rebuilds the month's summary and balances from its raw
// events in one transaction. Calling it twice with no intervening writes
// yields identical output.
func (e *Engine) RecomputeMonth(month Month) (*models.MonthlySummary, error) {
	var out *models.MonthlySummary
	err := e.db.Transaction(func(tx *gorm.DB) error {
		s, err := e.recomputeMonthTx(tx, month)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) loadMonthEvents(tx *gorm.DB, month Month) (MonthEvents, error) {
	ev := MonthEvents{
		ResolvedDues:    map[uint]bool{},
		MealsByMember:   map[uint]int64{},
		ContribByMember: map[uint]int64{},
	}
	if err := tx.Where("month = ?", month.String()).Find(&ev.Expenses).Error; err != nil {
		return ev, err
	}
	var dues []models.Due
	if err := tx.Where("month = ?", month.String()).Find(&dues).Error; err != nil {
		return ev, err
	}
	for _, d := range dues {
		if d.PaymentStatus == models.DueResolved {
			ev.ResolvedDues[d.ExpenseID] = true
		}
	}
	var meals []models.MealRecord
	if err := tx.Where("month = ?", month.String()).Find(&meals).Error; err != nil {
		return ev, err
	}
	for _, r := range meals {
		ev.MealsByMember[r.MemberID] += r.Count
	}
	var contribs []models.Contribution
	if err := tx.Where("month = ?", month.String()).Find(&contribs).Error; err != nil {
		return ev, err
	}
	for _, c := range contribs {
		ev.ContribByMember[c.MemberID] += c.AmountCents
	}
	return ev, nil
}

// recomputeMonthTx aggregates the month and persists summary + balances.
// The summary row is written under optimistic versioning; the balance set is
// replaced wholesale so no partial view is ever committed.
func (e *Engine) recomputeMonthTx(tx *gorm.DB, month Month) (*models.MonthlySummary, error) {
	members, err := e.eligibleMembers(tx, month)
	if err != nil {
		return nil, err
	}
	ev, err := e.loadMonthEvents(tx, month)
	if err != nil {
		return nil, err
	}
	summary, balances := AggregateMonth(month, members, ev)

	var existing models.MonthlySummary
	err = tx.Where("month = ?", month.String()).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&summary).Error; err != nil {
			if isUniqueViolation(err) {
				return nil, &ConcurrentUpdateError{Entity: "monthly_summary", Key: month.String()}
			}
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		res := tx.Model(&models.MonthlySummary{}).
			Where("id = ? AND version = ?", existing.ID, existing.Version).
			Updates(map[string]any{
				"total_meals":           summary.TotalMeals,
				"total_spendings_cents": summary.TotalSpendingsCents,
				"meal_rate":             summary.MealRate,
				"version":               existing.Version + 1,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, &ConcurrentUpdateError{Entity: "monthly_summary", Key: month.String()}
		}
		summary.ID = existing.ID
		summary.Version = existing.Version + 1
	}

	if err := tx.Where("month = ?", month.String()).Delete(&models.MemberMonthBalance{}).Error; err != nil {
		return nil, err
	}
	if len(balances) > 0 {
		if err := tx.Create(&balances).Error; err != nil {
			return nil, err
		}
	}
	return &summary, nil
}

// Summary returns the stored summary for a month. A month with events but no
// summary row is surfaced as InconsistentStateError rather than patched.
func (e *Engine) Summary(month Month) (*models.MonthlySummary, error) {
	var s models.MonthlySummary
	err := e.db.Where("month = ?", month.String()).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var mealCount int64
		if err := e.db.Model(&models.MealRecord{}).Where("month = ?", month.String()).Count(&mealCount).Error; err != nil {
			return nil, err
		}
		if mealCount > 0 {
			return nil, &InconsistentStateError{Detail: fmt.Sprintf("meal records exist for %s but no summary", month)}
		}
		return nil, &NotFoundError{Kind: "summary", Key: month.String()}
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MemberBalances returns the stored per-member balances for a month, ordered
// by member id.
func (e *Engine) MemberBalances(month Month) ([]models.MemberMonthBalance, error) {
	if _, err := e.Summary(month); err != nil {
		return nil, err
	}
	var rows []models.MemberMonthBalance
	if err := e.db.Where("month = ?", month.String()).Order("member_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Carryforward computes, persists and returns the month's carryforward rows,
// chaining from the previous month's entries. The month is recomputed first
// inside the same transaction so the rows always reflect current events.
func (e *Engine) Carryforward(month Month) ([]models.CarryforwardEntry, error) {
	var out []models.CarryforwardEntry
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if _, err := e.recomputeMonthTx(tx, month); err != nil {
			return err
		}
		var balances []models.MemberMonthBalance
		if err := tx.Where("month = ?", month.String()).Order("member_id").Find(&balances).Error; err != nil {
			return err
		}
		var prior []models.CarryforwardEntry
		if err := tx.Where("month = ?", month.Prev().String()).Find(&prior).Error; err != nil {
			return err
		}
		entries := ComputeCarryforward(month, balances, prior)
		if err := tx.Where("month = ?", month.String()).Delete(&models.CarryforwardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		out = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDues returns dues, optionally filtered by month, pending first then by
// id.
func (e *Engine) ListDues(month string) ([]models.Due, error) {
	q := e.db.Model(&models.Due{})
	if month != "" {
		m, err := ParseMonth(month)
		if err != nil {
			return nil, err
		}
		q = q.Where("month = ?", m.String())
	}
	var dues []models.Due
	if err := q.Order("payment_status").Order("id").Find(&dues).Error; err != nil {
		return nil, err
	}
	return dues, nil
}

// ListExpenses returns the month's expenses in day order.
func (e *Engine) ListExpenses(month Month) ([]models.Expense, error) {
	var out []models.Expense
	if err := e.db.Where("month = ?", month.String()).Order("day").Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint")
}
