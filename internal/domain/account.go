package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// BonusSpendThreshold is the monthly spend above which the bonus is granted.
	BonusSpendThreshold = decimal.NewFromInt(1000)

	// BonusGrant is the one-time bonus credited per reset period.
	BonusGrant = decimal.NewFromInt(100)
)

// Account is a rider's monetary state and journey flag.
type Account struct {
	RiderID                string
	CardID                 string
	Name                   string
	Balance                decimal.Decimal
	Bonus                  decimal.Decimal
	TotalSpendCurrentMonth decimal.Decimal
	CountBonus             int
	LastResetMonth         string
	OnJourney              bool
	Version                int64
}

// FareApplication describes what ApplyFare did to an account.
type FareApplication struct {
	Fare           decimal.Decimal
	MonthlyReset   bool
	BonusUsed      decimal.Decimal
	BalanceCharged decimal.Decimal
	BonusGranted   bool
}

// MonthKey formats the reset period containing t, e.g. "2026-10".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%d-%d", t.Year(), int(t.Month()))
}

// ApplyFare resets the monthly counters when month differs from the last
// reset, deducts fare bonus-first, accumulates monthly spend and grants the
// one-time bonus. It also clears the journey flag.
func (a *Account) ApplyFare(fare decimal.Decimal, month string) FareApplication {
	app := FareApplication{Fare: fare}

	if month != a.LastResetMonth {
		a.TotalSpendCurrentMonth = decimal.Zero
		a.CountBonus = 0
		a.Bonus = decimal.Zero
		a.LastResetMonth = month
		app.MonthlyReset = true
	}

	switch {
	case a.Bonus.GreaterThanOrEqual(fare):
		a.Bonus = a.Bonus.Sub(fare)
		app.BonusUsed = fare
	case a.Bonus.IsPositive():
		app.BonusUsed = a.Bonus
		app.BalanceCharged = fare.Sub(a.Bonus)
		a.Balance = a.Balance.Add(a.Bonus).Sub(fare)
		a.Bonus = decimal.Zero
	default:
		a.Balance = a.Balance.Sub(fare)
		app.BalanceCharged = fare
	}

	a.TotalSpendCurrentMonth = a.TotalSpendCurrentMonth.Add(fare)

	if a.TotalSpendCurrentMonth.GreaterThan(BonusSpendThreshold) && a.CountBonus == 0 {
		a.Bonus = BonusGrant
		a.CountBonus = 1
		app.BonusGranted = true
	}

	a.OnJourney = false

	return app
}

// BoardingState reports the rider's state as recorded on the account.
func (a *Account) BoardingState() BoardingState {
	if a.OnJourney {
		return BoardingStateOnBoard
	}
	return BoardingStateOffBoard
}
