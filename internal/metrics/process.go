// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_process_signals_total",
		Help: "Signals sent to external tool process groups",
	}, []string{"signal", "result"}) // result=sent|esrch|error

	processWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_process_waits_total",
		Help: "Exit outcomes of terminated external tool processes",
	}, []string{"result"})
)

// IncProcessSignal counts a signal delivery attempt.
func IncProcessSignal(signal, result string) {
	processSignalsTotal.WithLabelValues(signal, result).Inc()
}

// IncProcessWait counts how a terminated process exited.
func IncProcessWait(result string) {
	processWaitsTotal.WithLabelValues(result).Inc()
}
