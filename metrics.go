package geosql

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rewrite outcomes recorded by the rewriter.
const (
	outcomeRewritten = "rewritten"
	outcomeUnchanged = "unchanged"
	outcomeFallback  = "fallback"
	outcomeCached    = "cached"
)

// Metrics holds the Prometheus collectors for geometry conversion and query
// rewriting. A nil *Metrics records nothing.
type Metrics struct {
	wkbErrors     *prometheus.CounterVec
	geojsonErrors *prometheus.CounterVec
	rewrites      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		wkbErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geosql_wkb_decode_errors_total",
			Help: "Geometry values read from the database that failed to decode.",
		}, []string{"engine"}),
		geojsonErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geosql_geojson_decode_errors_total",
			Help: "GeoJSON documents rejected by the decoder.",
		}, []string{"kind"}),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geosql_query_rewrites_total",
			Help: "Read queries seen by the rewriter, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.wkbErrors, m.geojsonErrors, m.rewrites)
	}
	return m
}

func (m *Metrics) wkbDecodeError(e Engine) {
	if m == nil {
		return
	}
	m.wkbErrors.WithLabelValues(e.String()).Inc()
}

// GeoJSONDecodeError counts a rejected GeoJSON document of kind k. It is
// exported for the HTTP boundary, where decoding happens outside this package.
func (m *Metrics) GeoJSONDecodeError(k Kind) {
	if m == nil {
		return
	}
	m.geojsonErrors.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) rewrite(outcome string) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(outcome).Inc()
}
