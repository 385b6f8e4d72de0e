package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "draftdeck", Name: "documents_sent_total", Help: "Number of documents sent (including resends)."},
	)
	RecipientsSigned = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "draftdeck", Name: "recipients_signed_total", Help: "Number of successful recipient signatures."},
	)
	ImportItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "draftdeck", Name: "import_items_total", Help: "Import items processed by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "draftdeck", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "draftdeck", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsSent)
	reg.MustRegister(RecipientsSigned)
	reg.MustRegister(ImportItems)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
