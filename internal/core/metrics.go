package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	OrdersExpired   prometheus.Counter
	Matches         prometheus.Counter
	LoansCreated    prometheus.Counter
	LoansRepaid     prometheus.Counter
	Liquidations    prometheus.Counter
	HealthChecks    prometheus.Counter
	PoolDeposits    prometheus.Counter
	PoolWithdrawals prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_orders_placed_total",
			Help: "Orders accepted into the book, by side.",
		}, []string{"side"}),
		OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_orders_cancelled_total",
			Help: "Orders cancelled by their owner.",
		}),
		OrdersExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_orders_expired_total",
			Help: "Resting orders lazily expired during matching.",
		}),
		Matches: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_matches_total",
			Help: "Pairwise fills executed by the matching walk.",
		}),
		LoansCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_loans_created_total",
			Help: "Loans created from matched fragments.",
		}),
		LoansRepaid: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_loans_repaid_total",
			Help: "Loans fully repaid.",
		}),
		Liquidations: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_liquidations_total",
			Help: "Liquidation calls executed.",
		}),
		HealthChecks: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_health_checks_total",
			Help: "Health-check sweeps over the monitoring set.",
		}),
		PoolDeposits: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_pool_deposits_total",
			Help: "Pool deposit operations.",
		}),
		PoolWithdrawals: f.NewCounter(prometheus.CounterOpts{
			Name: "lending_pool_withdrawals_total",
			Help: "Pool withdrawal operations.",
		}),
	}
}
