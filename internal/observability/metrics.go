package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/platform/envutil"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	stepSaves     *CounterVec
	stepConflicts *Counter
	exports       *CounterVec
	exportLatency *HistogramVec
	payments      *CounterVec
	emails        *CounterVec
	wizardEvents  *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("pp_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"pp_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("pp_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("pp_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("pp_api_requests_error_total", "Total API requests answered with 5xx."),

		stepSaves:     NewCounterVec("pp_wizard_step_saves_total", "Wizard step saves by step/result.", []string{"step", "result"}),
		stepConflicts: NewCounter("pp_wizard_step_conflicts_total", "Step saves that lost an optimistic-lock race and retried."),
		exports:       NewCounterVec("pp_exports_total", "Document exports by format/watermark/result.", []string{"format", "watermarked", "result"}),
		exportLatency: NewHistogramVec(
			"pp_export_render_seconds",
			"Document render time in seconds by format.",
			[]string{"format"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		payments:     NewCounterVec("pp_payments_total", "Payment state changes by provider/status.", []string{"provider", "status"}),
		emails:       NewCounterVec("pp_emails_total", "Transactional emails by kind/result.", []string{"kind", "result"}),
		wizardEvents: NewCounterVec("pp_wizard_events_total", "Client wizard telemetry by action.", []string{"action"}),

		pgStats:   NewGaugeVec("pp_postgres_pool", "database/sql pool statistics.", []string{"stat"}),
		redisUp:   NewGauge("pp_redis_up", "1 when the last Redis ping succeeded."),
		redisPing: NewGauge("pp_redis_ping_seconds", "Latency of the last Redis ping."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []func() error{
		func() error { return m.apiRequests.WritePrometheus(w) },
		func() error { return m.apiLatency.WritePrometheus(w) },
		func() error { return m.apiInflight.WritePrometheus(w) },
		func() error { return m.apiReqTotal.WritePrometheus(w) },
		func() error { return m.apiReqError.WritePrometheus(w) },
		func() error { return m.stepSaves.WritePrometheus(w) },
		func() error { return m.stepConflicts.WritePrometheus(w) },
		func() error { return m.exports.WritePrometheus(w) },
		func() error { return m.exportLatency.WritePrometheus(w) },
		func() error { return m.payments.WritePrometheus(w) },
		func() error { return m.emails.WritePrometheus(w) },
		func() error { return m.wizardEvents.WritePrometheus(w) },
		func() error { return m.pgStats.WritePrometheus(w) },
		func() error { return m.redisUp.WritePrometheus(w) },
		func() error { return m.redisPing.WritePrometheus(w) },
	}
	for _, write := range writers {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerError(status) {
		m.apiReqError.Inc()
	}
}

// TrackInflight bumps the in-flight gauge and returns the matching release.
func (m *Metrics) TrackInflight() func() {
	if m == nil {
		return func() {}
	}
	m.apiInflight.Inc()
	return m.apiInflight.Dec
}

func (m *Metrics) IncStepSave(step int, result string) {
	if m == nil {
		return
	}
	m.stepSaves.Inc(strconv.Itoa(step), result)
}

func (m *Metrics) IncStepConflict() {
	if m == nil {
		return
	}
	m.stepConflicts.Inc()
}

func (m *Metrics) ObserveExport(format string, watermarked bool, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.exports.Inc(format, strconv.FormatBool(watermarked), result)
	if result == "ok" {
		m.exportLatency.Observe(dur.Seconds(), format)
	}
}

func (m *Metrics) IncPayment(provider, status string) {
	if m == nil {
		return
	}
	m.payments.Inc(provider, status)
}

func (m *Metrics) IncEmail(kind, result string) {
	if m == nil {
		return
	}
	m.emails.Inc(kind, result)
}

func (m *Metrics) IncWizardEvent(action string) {
	if m == nil {
		return
	}
	m.wizardEvents.Inc(action)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: database stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings the lock backend on every scrape interval.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
