package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_hits_total",
		Help: "Accepted hit events by source.",
	}, []string{"source"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_sessions_total",
		Help: "Completed game sessions by variant.",
	}, []string{"game"})

	finalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_ledger_finalize_total",
		Help: "Ledger finalize outcomes.",
	}, []string{"result"})
)
