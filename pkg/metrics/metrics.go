// Package metrics exposes Prometheus collectors for the dice bot.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "picodice"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves metrics gathered from reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds the bot's collectors. All methods are safe on a nil
// receiver so callers can run without metrics.
type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	RollsTotal      *prometheus.CounterVec
	DiceRolled      prometheus.Counter
	RollErrors      *prometheus.CounterVec
	MessagesTotal   *prometheus.CounterVec
	ChannelsRunning *prometheus.GaugeVec
}

// New creates and registers the bot's collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of dispatched commands, by command and outcome.",
		}, []string{"command", "outcome"}),
		RollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rolls_total",
			Help:      "Total number of successful roll commands, by delivery.",
		}, []string{"private"}),
		DiceRolled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dice_rolled_total",
			Help:      "Total number of individual dice rolled.",
		}),
		RollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roll_errors_total",
			Help:      "Total number of rejected roll commands, by reason.",
		}, []string{"reason"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_messages_total",
			Help:      "Total number of chat messages, by channel and direction.",
		}, []string{"channel", "direction"}),
		ChannelsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_running",
			Help:      "Whether a channel is connected (1) or not (0).",
		}, []string{"channel"}),
	}

	reg.MustRegister(m.CommandsTotal, m.RollsTotal, m.DiceRolled, m.RollErrors, m.MessagesTotal, m.ChannelsRunning)
	return m
}

func (m *Metrics) ObserveCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ObserveRoll(private bool, dice int) {
	if m == nil {
		return
	}
	m.RollsTotal.WithLabelValues(strconv.FormatBool(private)).Inc()
	m.DiceRolled.Add(float64(dice))
}

func (m *Metrics) ObserveRollError(reason string) {
	if m == nil {
		return
	}
	m.RollErrors.WithLabelValues(reason).Inc()
}

// ObserveMessage counts a message; direction is "inbound" or "outbound".
func (m *Metrics) ObserveMessage(channel, direction string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(channel, direction).Inc()
}

func (m *Metrics) SetChannelRunning(channel string, running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.ChannelsRunning.WithLabelValues(channel).Set(v)
}
