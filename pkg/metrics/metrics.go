// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"net/http"

	"github.com/ifrs2tools/equityval/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 数据库查询计数
	DBQueriesTotal prometheus.Counter
	// 数据库查询耗时
	DBQueryDuration prometheus.Histogram

	// 缓存命中/未命中
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// 估值计数（按定价模型分）
	ValuationsTotal *prometheus.CounterVec
	// 估值失败计数
	ValuationErrorsTotal prometheus.Counter
	// 单计划估值耗时
	ValuationDuration prometheus.Histogram
	// 已定价批次计数
	TranchesPricedTotal prometheus.Counter
	// 转交外部随机模拟引擎的批次计数
	StochasticDelegationsTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "db_queries_total",
			Help:      "Total database queries",
		}),
		DBQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "cache_hits_total",
			Help:      "Total cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "cache_misses_total",
			Help:      "Total cache misses",
		}),

		ValuationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "valuations_total",
			Help:      "Total plan valuations by pricing model",
		}, []string{"model"}),
		ValuationErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "valuation_errors_total",
			Help:      "Total failed plan valuations",
		}),
		ValuationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "valuation_duration_seconds",
			Help:      "Plan valuation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		TranchesPricedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "tranches_priced_total",
			Help:      "Total tranches priced",
		}),
		StochasticDelegationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "equityval",
			Subsystem: serviceName,
			Name:      "stochastic_delegations_total",
			Help:      "Total tranches delegated to the external stochastic engine",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ValuationsTotal,
		m.ValuationErrorsTotal,
		m.ValuationDuration,
		m.TranchesPricedTotal,
		m.StochasticDelegationsTotal,
	}

	for _, collector := range collectors {
		if err := prometheus.DefaultRegisterer.Register(collector); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 抓取端点的 HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
