package obs

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "henry_build_info",
		Help: "Constant 1, labelled with the running build.",
	}, []string{"version", "commit", "goversion"})

	startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "henry_start_time_seconds",
		Help: "Unix time the process started serving.",
	})
)

// InitBuildInfo publishes the build labels and the start time. Safe to call more than once.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo, startTime)
		startTime.Set(float64(time.Now().Unix()))
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
