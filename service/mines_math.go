package service

import (
	"github.com/shopspring/decimal"

	"tgcasino/models"
)

// CalculateMinesMultiplier returns the house-edged fair multiplier for having
// revealed step safe cells on a field with mines mines. The survival
// probability is prod_{i<step} (25-mines-i)/(25-i); numerator and
// denominator are accumulated as exact integers before the single division.
func CalculateMinesMultiplier(mines, step int, houseEdge decimal.Decimal) decimal.Decimal {
	if step <= 0 {
		return decimal.NewFromInt(1)
	}

	safe := decimal.NewFromInt(1)
	total := decimal.NewFromInt(1)
	for i := 0; i < step; i++ {
		safe = safe.Mul(decimal.NewFromInt(int64(models.MinesFieldSize - mines - i)))
		total = total.Mul(decimal.NewFromInt(int64(models.MinesFieldSize - i)))
	}

	if !safe.IsPositive() {
		return decimal.Zero
	}

	fair := total.Div(safe)
	return fair.Mul(decimal.NewFromInt(1).Sub(houseEdge)).Round(2)
}

// GetAllMultipliers returns the bank-capped multiplier for every step from 1
// to the number of safe cells.
func GetAllMultipliers(bank *models.Bank, bet decimal.Decimal, mines int, houseEdge decimal.Decimal) []models.LadderStep {
	maxMultiplier := MaxAllowedMultiplier(bank, bet)

	ladder := make([]models.LadderStep, 0, models.MinesFieldSize-mines)
	for step := 1; step <= models.MinesFieldSize-mines; step++ {
		ladder = append(ladder, models.LadderStep{
			Step:       step,
			Multiplier: decimal.Min(CalculateMinesMultiplier(mines, step, houseEdge), maxMultiplier),
		})
	}
	return ladder
}

// nextMinesMultiplier is the capped multiplier the following safe reveal would reach.
func nextMinesMultiplier(bank *models.Bank, round *models.MinesRound, houseEdge decimal.Decimal) decimal.Decimal {
	if round.Step >= models.MinesFieldSize-round.MineCount {
		return decimal.Zero
	}
	return ClampMultiplier(bank, CalculateMinesMultiplier(round.MineCount, round.Step+1, houseEdge), round.Bet)
}
