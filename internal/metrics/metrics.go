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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordOnboardingSubmission(outcome string)
	RecordProfileWriteFailure(stage string)
	RecordDashboardFetchFailure(query string)
	RecordSessionsPurged(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
}

// オンボーディング送信の結果ラベル。
const (
	OutcomeSuccess         = "success"
	OutcomeValidation      = "validation_error"
	OutcomeSessionExpired  = "session_expired"
	OutcomeMetadataFailed  = "metadata_failed"
	OutcomeProfileDegraded = "profile_degraded"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	onboarding     *prometheus.CounterVec
	profileWrite   *prometheus.CounterVec
	dashboardFetch *prometheus.CounterVec
	sessionsPurged prometheus.Counter
	httpStatus     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		onboarding: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurabot_onboarding_submissions_total",
			Help: "結果別のオンボーディング送信数",
		}, []string{"outcome"}),
		profileWrite: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurabot_profile_write_failures_total",
			Help: "処理段階別のプロフィール書き込み失敗数",
		}, []string{"stage"}),
		dashboardFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurabot_dashboard_fetch_failures_total",
			Help: "クエリ別のダッシュボード集計失敗数",
		}, []string{"query"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neurabot_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neurabot_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "neurabot_http_request_duration_seconds",
			Help:    "ルート別のリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.onboarding,
		c.profileWrite,
		c.dashboardFetch,
		c.sessionsPurged,
		c.httpStatus,
		c.latency,
	)

	return c
}

// RecordOnboardingSubmission はオンボーディング送信の結果を記録する。
func (c *Collector) RecordOnboardingSubmission(outcome string) {
	c.onboarding.WithLabelValues(outcome).Inc()
}

// RecordProfileWriteFailure はプロフィール書き込みの失敗を記録する。
func (c *Collector) RecordProfileWriteFailure(stage string) {
	c.profileWrite.WithLabelValues(stage).Inc()
}

// RecordDashboardFetchFailure はダッシュボード集計クエリの失敗を記録する。
func (c *Collector) RecordDashboardFetchFailure(query string) {
	c.dashboardFetch.WithLabelValues(query).Inc()
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルート別の処理時間を記録する。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordOnboardingSubmission(string)          {}
func (Nop) RecordProfileWriteFailure(string)           {}
func (Nop) RecordDashboardFetchFailure(string)         {}
func (Nop) RecordSessionsPurged(int64)                 {}
func (Nop) RecordHTTPStatus(int)                       {}
func (Nop) RecordRequestLatency(string, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
