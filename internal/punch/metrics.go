package punch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "punch_scans_total",
	Help: "Scan outcomes by result.",
}, []string{"result"})
