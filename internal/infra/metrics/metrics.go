package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/John-Robertt/framex/internal/domain"
)

// Recorder 汇总一次运行的指标。零值不可用；nil *Recorder 的所有方法都是空操作。
type Recorder struct {
	reg *prometheus.Registry

	recordsTotal  *prometheus.CounterVec
	seeksTotal    *prometheus.CounterVec
	framesTotal   *prometheus.CounterVec
	groupDuration *prometheus.HistogramVec
}

// New 创建一个独立 registry 的 Recorder（不污染全局 DefaultRegisterer）。
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_records_total",
			Help: "Total number of records processed, by status and error kind",
		}, []string{"status", "kind"}),
		seeksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_decoder_seeks_total",
			Help: "Total number of decoder seeks, by strategy",
		}, []string{"strategy"}),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framex_frames_decoded_total",
			Help: "Total number of frames decoded, by strategy",
		}, []string{"strategy"}),
		groupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framex_group_duration_seconds",
			Help:    "Duration of processing one recording group",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"strategy"}),
	}
	r.reg.MustRegister(r.recordsTotal, r.seeksTotal, r.framesTotal, r.groupDuration)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveOutcomes 按 status/kind 计数。
func (r *Recorder) ObserveOutcomes(outs []domain.Outcome) {
	if r == nil {
		return
	}
	for _, o := range outs {
		r.recordsTotal.WithLabelValues(string(o.Status), string(o.Kind)).Inc()
	}
}

func (r *Recorder) ObserveSeek(s domain.Strategy) {
	if r == nil {
		return
	}
	r.seeksTotal.WithLabelValues(string(s)).Inc()
}

func (r *Recorder) ObserveFrame(s domain.Strategy) {
	if r == nil {
		return
	}
	r.framesTotal.WithLabelValues(string(s)).Inc()
}

func (r *Recorder) ObserveGroup(s domain.Strategy, d time.Duration) {
	if r == nil {
		return
	}
	r.groupDuration.WithLabelValues(string(s)).Observe(d.Seconds())
}

// WriteTextfile 以 node_exporter textfile 格式写出全部指标（原子替换）。
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
