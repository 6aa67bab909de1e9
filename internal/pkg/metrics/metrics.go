package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MembershipOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiergate_memberships_total",
		Help: "Membership ledger operations processed",
	}, []string{"op", "tier"})

	LimitRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiergate_limit_rejects_total",
		Help: "Quota and rate-limit rejections",
	}, []string{"reason"})

	QuotaDebits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiergate_quota_debits_total",
		Help: "Successful quota-debit operations",
	}, []string{"kind"})

	Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiergate_withdrawals_total",
		Help: "Treasury withdrawal attempts",
	}, []string{"status"})

	Deposits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiergate_deposits_total",
		Help: "Treasury deposits accepted",
	}, []string{"asset"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tiergate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
