// metrics.go - доменные Prometheus-метрики сервиса.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// filesUploadedTotal - загруженные файлы по формату.
	filesUploadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dv_files_uploaded_total",
			Help: "Количество загруженных файлов",
		},
		[]string{"format"},
	)

	// filesUploadedBytes - суммарный объём загруженных данных.
	filesUploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dv_files_uploaded_bytes_total",
			Help: "Суммарный объём загруженных файлов в байтах",
		},
	)

	// visualizationRowsReturned - распределение количества строк в ответах визуализации.
	visualizationRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dv_visualization_rows",
			Help:    "Количество строк в ответе визуализации",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// llmRequestsTotal - запросы к языковой модели по результату (ok, error).
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dv_llm_requests_total",
			Help: "Количество запросов к языковой модели",
		},
		[]string{"result"},
	)
)
