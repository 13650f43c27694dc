package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemCollector periodically samples system-wide CPU percent, process RSS
// and goroutine count into a Metrics instance, mirroring the teacher's
// collectSystemMetrics loop.
type SystemCollector struct {
	metrics  *Metrics
	proc     *process.Process
	interval time.Duration
}

// NewSystemCollector looks up the current process via gopsutil. If that
// fails (unsupported platform, permissions), RSS sampling is skipped but
// goroutine and CPU sampling still run.
func NewSystemCollector(metrics *Metrics, interval time.Duration) *SystemCollector {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &SystemCollector{metrics: metrics, proc: proc, interval: interval}
}

// Run blocks, sampling on each tick until ctx is cancelled.
func (c *SystemCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *SystemCollector) sample() {
	c.metrics.SetGoroutines(runtime.NumGoroutine())

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		c.metrics.SetCPUPercent(pcts[0])
	}

	if c.proc == nil {
		return
	}
	if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
		c.metrics.SetMemoryRSS(memInfo.RSS)
	}
}
