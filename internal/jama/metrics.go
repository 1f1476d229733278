package jama

import "github.com/prometheus/client_golang/prometheus"

var rejectedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jama_reports_rejected_testruns_total",
		Help: "Test runs dropped while mapping Jama items, by reason.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(rejectedMetric)
}

const (
	reasonUnknownStatus = "unknown_status"
	reasonBadTimestamp  = "bad_timestamp"
	reasonNoFields      = "no_fields"
)
