package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"chat-hub/contract"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*Telemetry)(nil)

// Telemetry periodically logs self process stats (RSS, CPU, goroutines)
// so an operator can watch a node without attaching a profiler.
type Telemetry struct {
	log      *slog.Logger
	interval time.Duration
}

func NewTelemetry(log *slog.Logger, interval time.Duration) *Telemetry {
	return &Telemetry{log: log, interval: interval}
}

func (w *Telemetry) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("telemetry",
				"rss_bytes", rss,
				"cpu_percent", cpu,
				"goroutines", runtime.NumGoroutine())
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
