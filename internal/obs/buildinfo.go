package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Photoshare API build information.",
		},
		[]string{"version", "commit"},
	)
)

// Build metadata, set through -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// InitBuildInfo registers build_info once and sets it to 1 for version/commit.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, commit).Set(1)
}
