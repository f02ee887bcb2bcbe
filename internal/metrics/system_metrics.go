package metrics

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MetricsManager is a singleton owning the Prometheus registry of the dashboard
type MetricsManager struct {
	registry *prometheus.Registry

	hostCPUPercent    prometheus.Gauge
	hostMemoryPercent prometheus.Gauge

	systemOnce sync.Once
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the singleton instance of MetricsManager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
		}
	})
	return instance
}

// Handler serves every metric registered on the dashboard registry
func Handler() http.Handler {
	return promhttp.HandlerFor(GetInstance().registry, promhttp.HandlerOpts{})
}

func systemMetricsEnabled() bool {
	return os.Getenv("ENABLE_SYSTEM_METRICS") == "true"
}

func businessMetricsEnabled() bool {
	return os.Getenv("ENABLE_BUSINESS_METRICS") == "true"
}

// InitializeSystemMetrics registers the runtime collectors and host gauges once
func (mm *MetricsManager) InitializeSystemMetrics() {
	mm.systemOnce.Do(func() {
		mm.hostCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erdashboard_host_cpu_percent",
			Help: "Host CPU usage across all cores",
		})
		mm.hostMemoryPercent = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erdashboard_host_memory_percent",
			Help: "Host memory in use",
		})

		mm.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			mm.hostCPUPercent,
			mm.hostMemoryPercent,
		)
	})
}

// StartSystemMetrics samples host usage every interval until ctx is done
func StartSystemMetrics(ctx context.Context, interval time.Duration) {
	if !systemMetricsEnabled() {
		return
	}

	mm := GetInstance()
	mm.InitializeSystemMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.sampleHost()
			}
		}
	}()
}

func (mm *MetricsManager) sampleHost() {
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		mm.hostCPUPercent.Set(percentages[0])
	}
	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.hostMemoryPercent.Set(vmstat.UsedPercent)
	}
}
