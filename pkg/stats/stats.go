package stats

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	BYTE = 1 << (10 * iota)
	KILOBYTE
	MEGABYTE
	GIGABYTE

	namespace = "signer"
)

var (
	transactionsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_submitted_total",
		Help:      "Number of extrinsics submitted to the node.",
	})
	transactionsTerminated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_terminated_total",
		Help:      "Number of transactions that reached a terminal state.",
	}, []string{"state", "reason"})
	transactionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transaction_duration_seconds",
		Help:      "Time from creation to terminal state of a transaction.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"state"})
	unlockAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unlock_attempts_total",
		Help:      "Number of session unlock attempts.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		transactionsSubmitted,
		transactionsTerminated,
		transactionDuration,
		unlockAttempts,
	)
}

// TransactionSubmitted counts an extrinsic submission.
func TransactionSubmitted() {
	transactionsSubmitted.Inc()
}

// TransactionTerminated records the terminal state of a transaction. Only
// the leading part of the failure reason, up to the first colon, is used as
// label to keep its cardinality bounded.
func TransactionTerminated(state, reason string, elapsed time.Duration) {
	if i := strings.Index(reason, ":"); i >= 0 {
		reason = reason[:i]
	}
	transactionsTerminated.WithLabelValues(state, reason).Inc()
	transactionDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}

// UnlockAttempt counts an unlock attempt with its result.
func UnlockAttempt(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	unlockAttempts.WithLabelValues(result).Inc()
}

// EnableMemoryStatistics enables go routine that periodically prints memory
// usage of the go process.
func EnableMemoryStatistics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PrintMemoryStatistics()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// PrintMemoryStatistics logs heap usage and number of go routines.
func PrintMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.WithFields(log.Fields{
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / MEGABYTE,
		"total_alloc_mb": float64(memStats.TotalAlloc) / MEGABYTE,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}).Info("memory statistics")
}
