package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMaxAllowedMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		capital  string
		bet      string
		expected string
	}{
		{"scenario bank", "100000", "1000", "5"},
		{"rounds to cents", "100000", "3", "1666.67"},
		{"small capital", "1000", "100", "0.5"},
		{"zero bet", "100000", "0", "0"},
		{"negative bet", "100000", "-5", "0"},
		{"negative capital", "-1000", "1000", "0"},
		{"zero capital", "0", "1000", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := testBank(tt.capital)
			assertDecimal(t, tt.expected, MaxAllowedMultiplier(bank, d(tt.bet)))
		})
	}
}

func TestMaxAllowedMultiplier_MatchesFormulaForPositiveBets(t *testing.T) {
	bank := testBank("123456.78")
	for _, bet := range []string{"0.01", "1", "7.5", "99.99", "1000", "250000"} {
		b := d(bet)
		expected := bank.Capital.Mul(bank.MaxPayoutFraction).Div(b).Round(2)
		assert.True(t, MaxAllowedMultiplier(bank, b).Equal(expected), "bet %s", bet)
	}
}

func TestClampMultiplier(t *testing.T) {
	bank := testBank("100000")

	assertDecimal(t, "1.98", ClampMultiplier(bank, d("1.98"), d("1000")))
	assertDecimal(t, "5", ClampMultiplier(bank, d("99"), d("1000")))
	assertDecimal(t, "0", ClampMultiplier(bank, d("2"), decimal.Zero))

	deficit := testBank("-1000")
	assertDecimal(t, "0", ClampMultiplier(deficit, d("1.08"), d("1000")))
}

func TestApplyWin_DeficitBankNeverReducesTotalWon(t *testing.T) {
	bank := testBank("-1000")
	ApplyBet(bank, d("1000"))

	win := d("1000").Mul(ClampMultiplier(bank, d("1.08"), d("1000")))
	ApplyWin(bank, win)

	assertDecimal(t, "0", bank.TotalWon)
	assertDecimal(t, "0", bank.RTP)
}

func TestApplyBetAndWin(t *testing.T) {
	bank := testBank("100000")

	ApplyBet(bank, d("100"))
	assertDecimal(t, "100", bank.TotalWagered)
	assertDecimal(t, "100005", bank.Capital)
	assertDecimal(t, "0", bank.RTP)

	ApplyWin(bank, d("198"))
	assertDecimal(t, "198", bank.TotalWon)
	assertDecimal(t, "99807", bank.Capital)
	assertDecimal(t, "198", bank.RTP)

	ApplyBet(bank, d("300"))
	ApplyWin(bank, decimal.Zero)
	assertDecimal(t, "400", bank.TotalWagered)
	assertDecimal(t, "49.5", bank.RTP)
}

func TestApplyBet_SkimIsRoundedToCents(t *testing.T) {
	bank := testBank("0")

	ApplyBet(bank, d("0.33"))
	// 0.33 * 0.05 = 0.0165
	assertDecimal(t, "0.02", bank.Capital)
}

func TestApplyWin_NoWageredLeavesRTP(t *testing.T) {
	bank := testBank("1000")
	bank.RTP = d("12.34")

	ApplyWin(bank, d("10"))
	assertDecimal(t, "12.34", bank.RTP)
	assertDecimal(t, "990", bank.Capital)
}
