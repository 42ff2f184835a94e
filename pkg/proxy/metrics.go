package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// responsesTotal tracks responses sent to callers by datafile and status
	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grepoproxy_responses_total",
		Help: "Total responses by datafile and status",
	}, []string{"datafile", "status"})
)
