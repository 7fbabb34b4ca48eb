package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics counts trade lifecycle events across the services. All
// methods tolerate a nil receiver so services can run without a registry.
type DomainMetrics struct {
	ordersCreated    prometheus.Counter
	messagesPosted   prometheus.Counter
	ratingsSubmitted prometheus.Counter
	webhookEvents    *prometheus.CounterVec
}

// NewDomainMetrics registers the trade lifecycle counters on the provided
// registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total orders created across both payment paths.",
	})
	messagesPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_posted_total",
		Help: "Total chat messages posted.",
	})
	ratingsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ratings_submitted_total",
		Help: "Total trade ratings submitted.",
	})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Total Stripe webhook events handled, by event type.",
	}, []string{"type"})
	reg.MustRegister(ordersCreated, messagesPosted, ratingsSubmitted, webhookEvents)
	return &DomainMetrics{
		ordersCreated:    ordersCreated,
		messagesPosted:   messagesPosted,
		ratingsSubmitted: ratingsSubmitted,
		webhookEvents:    webhookEvents,
	}
}

func (m *DomainMetrics) OrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *DomainMetrics) MessagePosted() {
	if m == nil || m.messagesPosted == nil {
		return
	}
	m.messagesPosted.Inc()
}

func (m *DomainMetrics) RatingSubmitted() {
	if m == nil || m.ratingsSubmitted == nil {
		return
	}
	m.ratingsSubmitted.Inc()
}

func (m *DomainMetrics) WebhookEvent(eventType string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType).Inc()
}
