// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイやハンドラーから利用する。
type MetricsCollector interface {
	RecordAuthOutcome(outcome string)
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordBookCreated()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordPanic()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOutcomes   *prometheus.CounterVec
	loginSuccess   prometheus.Counter
	loginFail      *prometheus.CounterVec
	booksCreated   prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	panics         prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklib_auth_gateway_total",
			Help: "認証ゲートウェイの判定結果別リクエスト数",
		}, []string{"outcome"}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklib_login_success_total",
			Help: "OAuthログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklib_login_fail_total",
			Help: "OAuthログイン失敗の理由別合計数",
		}, []string{"reason"}),
		booksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklib_books_created_total",
			Help: "登録された蔵書の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklib_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booklib_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklib_http_panics_total",
			Help: "ハンドラーで捕捉したpanicの合計数",
		}),
	}

	reg.MustRegister(
		c.authOutcomes,
		c.loginSuccess,
		c.loginFail,
		c.booksCreated,
		c.httpStatus,
		c.requestLatency,
		c.panics,
	)

	return c
}

// RecordAuthOutcome は認証ゲートウェイの判定結果を記録する。
func (c *Collector) RecordAuthOutcome(outcome string) {
	c.authOutcomes.WithLabelValues(outcome).Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordBookCreated は蔵書登録を記録する。
func (c *Collector) RecordBookCreated() {
	c.booksCreated.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordPanic はハンドラーで捕捉したpanicを記録する。
func (c *Collector) RecordPanic() {
	c.panics.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// statusRecorder はレスポンスのステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// NewHTTPMiddleware はステータスコードと処理時間を記録するミドルウェアを返す。
func NewHTTPMiddleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			c.RecordHTTPStatus(rec.statusCode)
			c.RecordRequestLatency(time.Since(start))
		})
	}
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
