package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assetlend/internal/config"
)

type Metrics struct {
	registry       *prometheus.Registry
	httpReqCnt     *prometheus.CounterVec
	httpDur        *prometheus.HistogramVec
	httpInfl       *prometheus.GaugeVec
	loanTransition *prometheus.CounterVec
	overdueSweeps  *prometheus.CounterVec
	overdueMarked  prometheus.Counter
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	loanTransition := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "loan_transitions_total", Help: "Loan status transitions by source and target status."}, []string{"from", "to"})
	overdueSweeps := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "overdue_sweeps_total", Help: "Overdue sweep runs by result."}, []string{"result"})
	overdueMarked := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "overdue_loans_marked_total", Help: "Loans moved to overdue by the sweeper."})
	r.MustRegister(loanTransition, overdueSweeps, overdueMarked)

	return &Metrics{
		registry:       r,
		httpReqCnt:     httpReqCnt,
		httpDur:        httpDur,
		httpInfl:       httpInfl,
		loanTransition: loanTransition,
		overdueSweeps:  overdueSweeps,
		overdueMarked:  overdueMarked,
	}
}

// LoanTransition counts one successful status change. Safe on a nil receiver.
func (m *Metrics) LoanTransition(from, to string) {
	if m == nil {
		return
	}
	m.loanTransition.WithLabelValues(from, to).Inc()
}

// OverdueSweep records one sweeper run. Safe on a nil receiver.
func (m *Metrics) OverdueSweep(marked int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.overdueSweeps.WithLabelValues("error").Inc()
		return
	}
	m.overdueSweeps.WithLabelValues("ok").Inc()
	m.overdueMarked.Add(float64(marked))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
