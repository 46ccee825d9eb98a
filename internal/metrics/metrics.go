package metrics

import (
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "signaling"

type Metrics struct {
	connections prometheus.Gauge
	rooms       prometheus.Gauge
	messages    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	dropped     prometheus.Counter
	engineUp    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Registered websocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms with at least one participant.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound signaling messages by type.",
		}, []string{"type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_sent_total",
			Help:      "Error messages sent to clients by code.",
		}, []string{"code"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames evicted from full connection queues.",
		}),
		engineUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "media_engine_up",
			Help:      "1 while the media worker is alive.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.rooms, m.messages, m.errors, m.dropped, m.engineUp)
	}
	return m
}

func (m *Metrics) ConnectionOpened() { m.connections.Inc() }

func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

func (m *Metrics) SetRooms(n int) { m.rooms.Set(float64(n)) }

func (m *Metrics) MessageReceived(t domain.MessageType) {
	if t == "" {
		t = "invalid"
	}
	m.messages.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) ErrorSent(code domain.ErrorCode) {
	m.errors.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) FrameDropped() { m.dropped.Inc() }

func (m *Metrics) SetEngineUp(up bool) {
	if up {
		m.engineUp.Set(1)
		return
	}
	m.engineUp.Set(0)
}
