// Package metrics はgatewayのリクエストメトリクスを保持し、Prometheus形式で公開する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "gateway"

// UpstreamUnreachable は転送先に到達できなかった場合のresultラベル値。
const UpstreamUnreachable = "unreachable"

// UpstreamInvalidResponse は転送先のレスポンスが上限を超えた場合のresultラベル値。
const UpstreamInvalidResponse = "invalid_response"

// Registry はgatewayのメトリクスを保持する。
// カウンタの加算はアトミックに行われ、複数のgoroutineから同時に呼び出せる。
type Registry struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	upstreams *prometheus.CounterVec
	handler   http.Handler
}

// NewRegistry は専用のprometheus.Registryを持つメトリクスを生成する。
func NewRegistry() *Registry {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of requests by method, route template and final status code.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Duration in seconds of a request handled by the gateway.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	upstreams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of calls to backend services by upstream and result.",
	}, []string{"upstream", "result"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(requests, duration, upstreams)

	return &Registry{
		registry:  reg,
		requests:  requests,
		duration:  duration,
		upstreams: upstreams,
		handler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

// ObserveRequest は1リクエストの完了を記録する。statusはクライアントに返した最終的なステータスコード。
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveUpstream は転送先サービスへの1回の呼び出し結果を記録する。
// resultにはステータスコード、UpstreamUnreachable、UpstreamInvalidResponseのいずれかを指定する。
func (r *Registry) ObserveUpstream(upstream, result string) {
	r.upstreams.WithLabelValues(upstream, result).Inc()
}

// RequestCount は指定したラベルのリクエスト数を返す。未観測のラベルは0を返し、系列を作成しない。
func (r *Registry) RequestCount(method, route string, status int) float64 {
	return r.sum(namespace+"_requests_total", map[string]string{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	})
}

// UpstreamCount は指定した転送先への呼び出し回数を結果によらず合計して返す。
func (r *Registry) UpstreamCount(upstream string) float64 {
	return r.sum(namespace+"_upstream_requests_total", map[string]string{"upstream": upstream})
}

// sum はnameのカウンタのうちwantのラベルをすべて持つ系列の合計を返す。
func (r *Registry) sum(name string, want map[string]string) float64 {
	families, err := r.registry.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if hasLabels(m, want) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		v, ok := want[lp.GetName()]
		if !ok {
			continue
		}
		if v != lp.GetValue() {
			return false
		}
		matched++
	}
	return matched == len(want)
}

// Handler はメトリクスをPrometheusのテキスト形式で返すHTTPハンドラ。
func (r *Registry) Handler() http.Handler {
	return r.handler
}
