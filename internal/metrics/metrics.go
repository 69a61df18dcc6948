package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once    sync.Once
	initErr error

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Auth
	loginsTotal       *prometheus.CounterVec
	tokensIssuedTotal *prometheus.CounterVec
	rotationsTotal    *prometheus.CounterVec
	blacklistHits     prometheus.Counter

	// API keys y edge
	keyValidationsTotal *prometheus.CounterVec
	edgeRejectionsTotal *prometheus.CounterVec
)

// Register inicializa las métricas del servicio y devuelve el handler para /metrics.
// Es idempotente: llamadas posteriores reutilizan los collectors ya registrados.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Intentos de login por resultado",
		}, []string{"result"}) // result: ok|invalid_credentials|error

		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Access tokens emitidos por tipo de grant",
		}, []string{"grant"})

		rotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_rotations_total",
			Help: "Rotaciones de refresh token por resultado",
		}, []string{"result"}) // result: ok|not_found|expired|error

		blacklistHits = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_blacklist_hits_total",
			Help: "Access tokens rechazados por estar en la blacklist",
		})

		keyValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apikey_validations_total",
			Help: "Validaciones de API keys por resultado",
		}, []string{"result"}) // result: ok|not_valid|error

		edgeRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_rejections_total",
			Help: "Requests rechazadas en los filtros de borde",
		}, []string{"filter", "reason"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			loginsTotal, tokensIssuedTotal, rotationsTotal, blacklistHits,
			keyValidationsTotal, edgeRejectionsTotal,
		} {
			if err := register(reg, c); err != nil {
				initErr = err
				return
			}
		}
	})
	if initErr != nil {
		return nil, initErr
	}

	return promhttp.Handler(), nil
}

// register registra el collector ignorando duplicados.
func register(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Las funciones de registro son no-op si Register todavía no corrió, para que
// los tests unitarios no necesiten un registry.

func ObserveLogin(result string) {
	if loginsTotal != nil {
		loginsTotal.WithLabelValues(result).Inc()
	}
}

func ObserveTokenIssued(grant string) {
	if tokensIssuedTotal != nil {
		tokensIssuedTotal.WithLabelValues(grant).Inc()
	}
}

func ObserveRotation(result string) {
	if rotationsTotal != nil {
		rotationsTotal.WithLabelValues(result).Inc()
	}
}

func ObserveBlacklistHit() {
	if blacklistHits != nil {
		blacklistHits.Inc()
	}
}

func ObserveKeyValidation(result string) {
	if keyValidationsTotal != nil {
		keyValidationsTotal.WithLabelValues(result).Inc()
	}
}

func ObserveEdgeRejection(filter, reason string) {
	if edgeRejectionsTotal != nil {
		edgeRejectionsTotal.WithLabelValues(filter, reason).Inc()
	}
}

// HTTPRequest registra una request terminada. Lo usa el middleware de métricas.
func HTTPRequest(method, path, status string, seconds float64) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
	}
}

// HTTPInflight ajusta el gauge de requests en vuelo.
func HTTPInflight(method, path string, delta float64) {
	if httpInflight != nil {
		httpInflight.WithLabelValues(method, path).Add(delta)
	}
}
