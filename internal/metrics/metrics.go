// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordTransition(transition string)
	RecordTransitionError(transition, code string)
	RecordCompletedSession(focusSeconds, breakSeconds int64)
	RecordExtensionPoll()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	transitions      *prometheus.CounterVec
	transitionErrors *prometheus.CounterVec
	focusDuration    prometheus.Histogram
	breakDuration    prometheus.Histogram
	extensionPolls   prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusboard_transitions_total",
			Help: "フォーカスセッションの状態遷移の合計数",
		}, []string{"transition"}),
		transitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusboard_transition_errors_total",
			Help: "失敗した状態遷移の合計数（エラーコード別）",
		}, []string{"transition", "code"}),
		focusDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "focusboard_completed_focus_seconds",
			Help:    "完了したセッションの集中時間（秒）",
			Buckets: []float64{300, 900, 1500, 1800, 2700, 3600, 5400, 7200, 10800},
		}),
		breakDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "focusboard_completed_break_seconds",
			Help:    "完了したセッションの休憩時間（秒）",
			Buckets: []float64{0, 60, 300, 600, 900, 1800, 3600},
		}),
		extensionPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focusboard_extension_polls_total",
			Help: "拡張機能からの状態取得の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "focusboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.transitions,
		c.transitionErrors,
		c.focusDuration,
		c.breakDuration,
		c.extensionPolls,
		c.httpStatus,
	)

	return c
}

// RecordTransition は成功した状態遷移を記録する。
func (c *Collector) RecordTransition(transition string) {
	c.transitions.WithLabelValues(transition).Inc()
}

// RecordTransitionError は失敗した状態遷移を記録する。
func (c *Collector) RecordTransitionError(transition, code string) {
	c.transitionErrors.WithLabelValues(transition, code).Inc()
}

// RecordCompletedSession は完了したセッションの集中時間と休憩時間を記録する。
func (c *Collector) RecordCompletedSession(focusSeconds, breakSeconds int64) {
	c.focusDuration.Observe(float64(focusSeconds))
	c.breakDuration.Observe(float64(breakSeconds))
}

// RecordExtensionPoll は拡張機能からの状態取得を記録する。
func (c *Collector) RecordExtensionPoll() {
	c.extensionPolls.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector実装。
type Nop struct{}

func (Nop) RecordTransition(string)             {}
func (Nop) RecordTransitionError(string, string) {}
func (Nop) RecordCompletedSession(int64, int64)  {}
func (Nop) RecordExtensionPoll()                 {}
func (Nop) RecordHTTPStatus(int)                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
