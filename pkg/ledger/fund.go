package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"messbook/models"
)

// lockFund loads the singleton fund row under SELECT ... FOR UPDATE so the
// check-then-act of a deduction is atomic against concurrent writers.
func lockFund(tx *gorm.DB) (*models.GlobalFund, error) {
	var fund models.GlobalFund
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&fund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &InconsistentStateError{Detail: "global fund row missing; run migrate"}
	}
	if err != nil {
		return nil, err
	}
	return &fund, nil
}

func creditFund(tx *gorm.DB, amountCents int64) error {
	fund, err := lockFund(tx)
	if err != nil {
		return err
	}
	fund.TotalMealFundCents += amountCents
	fund.Version++
	fund.LastUpdated = time.Now()
	return tx.Save(fund).Error
}

// debitFund moves amountCents from the meal fund to total spendings. It
// fails with InsufficientFundsError, leaving the row untouched, when the
// fund cannot cover the amount; TotalMealFundCents never goes negative.
func debitFund(tx *gorm.DB, amountCents int64) error {
	fund, err := lockFund(tx)
	if err != nil {
		return err
	}
	if fund.TotalMealFundCents < amountCents {
		return &InsufficientFundsError{AvailableCents: fund.TotalMealFundCents, RequestedCents: amountCents}
	}
	fund.TotalMealFundCents -= amountCents
	fund.TotalSpendingsCents += amountCents
	fund.Version++
	fund.LastUpdated = time.Now()
	return tx.Save(fund).Error
}

// Deposit credits the global fund directly (a top-up not tied to a member's
// monthly contribution).
func (e *Engine) Deposit(amountCents int64) error {
	if amountCents <= 0 {
		return &ValidationError{Field: "amount_cents", Reason: "must be positive"}
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		return creditFund(tx, amountCents)
	})
}

// ResolveDue settles a pending due from the global fund. Fund decrement,
// spending increment, due status flip and the month recomputation happen in
// one transaction; a failure anywhere rolls all of it back.
func (e *Engine) ResolveDue(actor Actor, dueID uint) error {
	if !actor.IsAdmin() {
		return &AuthorizationError{Reason: "resolving dues requires administrator role"}
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		var due models.Due
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&due, dueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Kind: "due", Key: fmt.Sprint(dueID)}
			}
			return err
		}
		if due.PaymentStatus == models.DueResolved {
			return &ValidationError{Field: "due", Reason: "already resolved"}
		}
		if err := debitFund(tx, due.AmountCents); err != nil {
			return err
		}
		if err := tx.Model(&due).Update("payment_status", models.DueResolved).Error; err != nil {
			return err
		}
		// The expense now counts toward its month's spendings.
		month, err := ParseMonth(due.Month)
		if err != nil {
			return &InconsistentStateError{Detail: fmt.Sprintf("due %d has malformed month %q", due.ID, due.Month)}
		}
		_, err = e.recomputeMonthTx(tx, month)
		return err
	})
}

// FundBalance returns the current global fund counters.
func (e *Engine) FundBalance() (*models.GlobalFund, error) {
	var fund models.GlobalFund
	err := e.db.First(&fund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &InconsistentStateError{Detail: "global fund row missing; run migrate"}
	}
	if err != nil {
		return nil, err
	}
	return &fund, nil
}
