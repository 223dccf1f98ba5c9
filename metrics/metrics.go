// Package metrics exposes Prometheus instruments for wagers, settlements,
// provider calls and bank capital.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"tgcasino/events"
)

var (
	wagersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_wagers_total",
			Help: "Settled wagers by game and outcome",
		},
		[]string{"game", "outcome"},
	)

	payoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_payout_total",
			Help: "Sum of win amounts paid out by game",
		},
		[]string{"game"},
	)

	settlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casino_settlement_duration_ms",
			Help:    "Settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"game", "result"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casino_provider_request_duration_ms",
			Help:    "Slot provider request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		},
		[]string{"call", "result"},
	)

	bankCapital = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "casino_bank_capital",
			Help: "Current payable capital per bank",
		},
		[]string{"bank"},
	)

	minesRoundsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_mines_rounds_finished_total",
			Help: "Finished mines rounds by final status",
		},
		[]string{"status"},
	)

	balanceChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_balance_changes_total",
			Help: "Committed balance mutations by transaction type",
		},
		[]string{"type"},
	)

	reservationsRefunded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casino_slot_reservations_refunded_total",
			Help: "Slot reservations returned to players",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "fail"
	}
	return "success"
}

// ObserveSettlement records how long a settlement for game took.
func ObserveSettlement(game string, started time.Time, err error) {
	settlementDuration.WithLabelValues(game, result(err)).Observe(float64(time.Since(started).Milliseconds()))
}

// ObserveProviderRequest records one outbound provider call.
func ObserveProviderRequest(call string, started time.Time, err error) {
	providerDuration.WithLabelValues(call, result(err)).Observe(float64(time.Since(started).Milliseconds()))
}

// SetBankCapital sets the capital gauge for one bank
func SetBankCapital(bank string, capital decimal.Decimal) {
	bankCapital.WithLabelValues(bank).Set(capital.InexactFloat64())
}

// Subscribe wires the counters and gauges that are driven by committed events.
func Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeWagerSettled, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.WagerSettledEvent)
		if !ok {
			return
		}
		outcome := "lost"
		if ev.Won {
			outcome = "won"
		}
		wagersTotal.WithLabelValues(string(ev.Game), outcome).Inc()
		if ev.WinAmount.IsPositive() {
			payoutTotal.WithLabelValues(string(ev.Game)).Add(ev.WinAmount.InexactFloat64())
		}
	})

	bus.Subscribe(events.EventTypeBankUpdated, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.BankUpdatedEvent)
		if !ok {
			return
		}
		SetBankCapital(ev.BankName, ev.Capital)
	})

	bus.Subscribe(events.EventTypeMinesRoundFinished, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.MinesRoundFinishedEvent)
		if !ok {
			return
		}
		minesRoundsFinished.WithLabelValues(string(ev.Status)).Inc()
	})

	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.BalanceChangeEvent)
		if !ok {
			return
		}
		balanceChanges.WithLabelValues(string(ev.TransactionType)).Inc()
	})

	bus.Subscribe(events.EventTypeSlotRoundRefunded, func(ctx context.Context, e events.Event) {
		reservationsRefunded.Inc()
	})
}
