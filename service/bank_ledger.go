package service

import (
	"github.com/shopspring/decimal"

	"tgcasino/models"
)

var hundred = decimal.NewFromInt(100)

// MaxAllowedMultiplier is the payout ceiling for a bet: no round may pay more
// than this multiple of the bet, whatever the game math or provider says.
// The ceiling never drops below zero, even for a bank running a deficit.
func MaxAllowedMultiplier(bank *models.Bank, bet decimal.Decimal) decimal.Decimal {
	if !bet.IsPositive() {
		return decimal.Zero
	}
	return decimal.Max(bank.Capital.Mul(bank.MaxPayoutFraction).Div(bet).Round(2), decimal.Zero)
}

// ClampMultiplier caps multiplier at MaxAllowedMultiplier.
func ClampMultiplier(bank *models.Bank, multiplier, bet decimal.Decimal) decimal.Decimal {
	return decimal.Min(multiplier, MaxAllowedMultiplier(bank, bet))
}

// ApplyBet books a wager: the house edge is kept in the bank immediately.
func ApplyBet(bank *models.Bank, bet decimal.Decimal) {
	bank.TotalWagered = bank.TotalWagered.Add(bet)
	bank.Capital = bank.Capital.Add(bet.Mul(bank.HouseEdge).Round(2))
}

// ApplyWin pays winAmount out of the bank and recomputes RTP.
func ApplyWin(bank *models.Bank, winAmount decimal.Decimal) {
	bank.TotalWon = bank.TotalWon.Add(winAmount)
	bank.Capital = bank.Capital.Sub(winAmount)

	if bank.TotalWagered.IsPositive() {
		bank.RTP = bank.TotalWon.Div(bank.TotalWagered).Mul(hundred).Round(2)
	}
}
