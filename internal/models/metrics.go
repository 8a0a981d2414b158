package models

import "time"

// SystemMetrics is a point-in-time summary of the service instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	ActiveAdminMonitors      int       `json:"activeAdminMonitors"`
	DashboardStreams         int       `json:"dashboardStreams"`
	Goroutines               int       `json:"goroutines"`
	HeapAllocBytes           uint64    `json:"heapAllocBytes"`
	UptimeSeconds            int64     `json:"uptimeSeconds"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
