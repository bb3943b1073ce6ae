package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeviceMetrics 设备交互指标
type DeviceMetrics struct {
	FramesSent       *prometheus.CounterVec
	ExchangeFailures *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
}

// Device 全局实例，未 Init 时照常计数，只是不对外暴露
var Device = newDeviceMetrics()

func newDeviceMetrics() *DeviceMetrics {
	return &DeviceMetrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_frames_sent_total",
			Help: "The total number of command frames sent to the device",
		}, []string{"ins"}),
		ExchangeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_exchange_failures_total",
			Help: "The total number of aborted command sequences",
		}, []string{"ins", "kind"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_command_duration_seconds",
			Help:    "Duration of complete command sequences, including on-screen confirmation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"ins"}),
	}
}

func (m *DeviceMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.FramesSent, m.ExchangeFailures, m.CommandDuration)
}

// ObserveCommand 记录一条命令从开始到结束的耗时
func (m *DeviceMetrics) ObserveCommand(ins string, start time.Time) {
	m.CommandDuration.WithLabelValues(ins).Observe(time.Since(start).Seconds())
}
