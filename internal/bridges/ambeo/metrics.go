package ambeo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	deviceReads  *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	commands     *prometheus.CounterVec
	soundbars    *prometheus.GaugeVec
}

// Read outcomes.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deviceReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ambeo",
				Name:      "device_reads_total",
				Help:      "Soundbar reads made while polling, by outcome.",
			},
			[]string{"outcome"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ambeo",
				Name:      "poll_duration_seconds",
				Help:      "Time taken to poll one soundbar.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"soundbar"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ambeo",
				Name:      "commands_total",
				Help:      "Commands handled, by command and result.",
			},
			[]string{"command", "result"},
		),
		soundbars: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ambeo",
				Name:      "soundbars",
				Help:      "Configured soundbars by setup state.",
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.deviceReads, m.pollDuration, m.commands, m.soundbars)
	}
	return m
}

func (m *Metrics) observeReads(ok, failed int) {
	if m == nil {
		return
	}
	m.deviceReads.WithLabelValues(outcomeOK).Add(float64(ok))
	m.deviceReads.WithLabelValues(outcomeError).Add(float64(failed))
}

func (m *Metrics) observePoll(soundbar string, seconds float64) {
	if m == nil {
		return
	}
	m.pollDuration.WithLabelValues(soundbar).Observe(seconds)
}

func (m *Metrics) observeCommand(command string, status AckStatus) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, string(status)).Inc()
}

func (m *Metrics) setSoundbars(c SoundbarCounts) {
	if m == nil {
		return
	}
	m.soundbars.WithLabelValues(string(setupReady)).Set(float64(c.Ready))
	m.soundbars.WithLabelValues(string(setupPending)).Set(float64(c.Pending))
	m.soundbars.WithLabelValues(string(setupFailed)).Set(float64(c.Failed))
}
