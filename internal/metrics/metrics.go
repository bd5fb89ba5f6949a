// Package metrics exposes Prometheus instrumentation for the auction engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BidsAccepted counts bids that became the standing bid.
	BidsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "bids_accepted_total",
		Help:      "Number of bids accepted as the new highest bid.",
	})

	// BidsRejected counts rejected bids by reason.
	BidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "bids_rejected_total",
		Help:      "Number of rejected bids, labelled by rejection reason.",
	}, []string{"reason"})

	// AuctionsSettled counts finished auctions by outcome (settled/cancelled).
	AuctionsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "auctions_finished_total",
		Help:      "Number of auctions reaching a terminal status, labelled by outcome.",
	}, []string{"outcome"})

	// ListingsSold counts completed fixed-price purchases.
	ListingsSold = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "listings_sold_total",
		Help:      "Number of fixed-price listings purchased.",
	})

	// SettlementRetries counts settlement attempts beyond the first.
	SettlementRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "settlement_retries_total",
		Help:      "Number of settlement retry attempts.",
	})

	// ExternalCallFailures counts failed calls to external collaborators.
	ExternalCallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "external_call_failures_total",
		Help:      "Number of failed payment/registrar calls, labelled by provider.",
	}, []string{"provider"})

	// ScanDuration observes how long each scheduler scan takes.
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market",
		Name:      "scheduler_scan_duration_seconds",
		Help:      "Duration of scheduler scans, labelled by loop.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"loop"})
)
