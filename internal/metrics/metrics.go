package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailgate_emails_total",
			Help: "Email lifecycle counter by stage and kind",
		},
		[]string{"stage", "kind"}, // claimed|deduped|sent|failed , live|test
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EmailsTotal,
	)
}
