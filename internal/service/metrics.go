package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cronogramaResolveTotal 草稿解析次数，source: backend | published | template | superseded
	cronogramaResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cronograma_resolve_total",
		Help: "Draft resolutions by variant and winning fallback source",
	}, []string{"variant", "source"})

	// cronogramaBackendErrors 草稿查询时后端失败（已降级处理）
	cronogramaBackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cronograma_backend_lookup_errors_total",
		Help: "Backend draft lookups that failed and fell through the fallback chain",
	}, []string{"variant"})

	// cronogramaPublishTotal 发布结果，result: success | rejected | invalid | mismatch
	cronogramaPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cronograma_publish_total",
		Help: "Publish attempts by variant and result",
	}, []string{"variant", "result"})

	// periodCacheSweeps 活动周期变更触发的缓存清扫
	periodCacheSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "periodo_cache_sweeps_total",
		Help: "Cache invalidation sweeps triggered by active period changes",
	})
)
