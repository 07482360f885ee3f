package echoapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkInCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mahudhurio_checkins_total",
		Help: "Check-in attempts partitioned by result.",
	}, []string{"result"})

	sessionOpenedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mahudhurio_sessions_opened_total",
		Help: "Attendance sessions opened.",
	})

	sessionClosedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mahudhurio_sessions_closed_total",
		Help: "Attendance sessions closed.",
	})
)

func observeCheckIn(result string) {
	checkInCounter.WithLabelValues(result).Inc()
}
