package metrics

import (
	"strconv"

	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics records adjustment session activity. It implements domain.SessionObserver.
type SessionMetrics struct {
	ActiveSessions   prometheus.Gauge
	FrameTransitions prometheus.Counter
	BlinkTicks       prometheus.Counter
	Commands         *prometheus.CounterVec
}

var _ domain.SessionObserver = (*SessionMetrics)(nil)

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of open adjustment sessions.",
		}),
		FrameTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frame_transitions_total",
			Help:      "Total number of Go Next / Go Back frame changes.",
		}),
		BlinkTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "blink_ticks_total",
			Help:      "Total number of blink opacity swaps.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "commands_total",
			Help:      "Total number of commands handled, by type and whether they changed state.",
		}, []string{"type", "applied"}),
	}

	reg.MustRegister(m.ActiveSessions, m.FrameTransitions, m.BlinkTicks, m.Commands)
	return m
}

func (m *SessionMetrics) SessionOpened() {
	m.ActiveSessions.Inc()
}

func (m *SessionMetrics) SessionClosed() {
	m.ActiveSessions.Dec()
}

func (m *SessionMetrics) FrameTransition() {
	m.FrameTransitions.Inc()
}

func (m *SessionMetrics) BlinkTick() {
	m.BlinkTicks.Inc()
}

// CommandHandled folds unrecognised command types into "unknown" to bound label cardinality.
func (m *SessionMetrics) CommandHandled(t domain.CommandType, applied bool) {
	label := string(t)
	if !t.Known() {
		label = "unknown"
	}
	m.Commands.WithLabelValues(label, strconv.FormatBool(applied)).Inc()
}
