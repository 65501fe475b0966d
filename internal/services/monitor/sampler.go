package monitor

import (
	"runtime/metrics"
	"sync"
)

// SystemSampler reports process memory (MB) and CPU utilization (percent).
type SystemSampler interface {
	Sample() (memoryMB, cpuPercent float64)
}

const (
	heapObjectsMetric = "/memory/classes/heap/objects:bytes"
	cpuTotalMetric    = "/cpu/classes/total:cpu-seconds"
	cpuIdleMetric     = "/cpu/classes/idle:cpu-seconds"
)

// RuntimeSampler reads heap usage and CPU time from runtime/metrics.
// CPU utilization is the share of available CPU time that was not idle
// since the previous call; the first call reports 0.
type RuntimeSampler struct {
	lastTotal float64
	lastIdle  float64
	mu        sync.Mutex
}

// NewRuntimeSampler creates a sampler backed by the Go runtime.
func NewRuntimeSampler() *RuntimeSampler {
	return &RuntimeSampler{}
}

// Sample implements SystemSampler.
func (r *RuntimeSampler) Sample() (float64, float64) {
	samples := []metrics.Sample{
		{Name: heapObjectsMetric},
		{Name: cpuTotalMetric},
		{Name: cpuIdleMetric},
	}
	metrics.Read(samples)

	memoryMB := 0.0
	if samples[0].Value.Kind() == metrics.KindUint64 {
		memoryMB = float64(samples[0].Value.Uint64()) / (1024 * 1024)
	}

	var total, idle float64
	if samples[1].Value.Kind() == metrics.KindFloat64 {
		total = samples[1].Value.Float64()
	}
	if samples[2].Value.Kind() == metrics.KindFloat64 {
		idle = samples[2].Value.Float64()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cpu := 0.0
	if dt := total - r.lastTotal; r.lastTotal > 0 && dt > 0 {
		used := dt - (idle - r.lastIdle)
		cpu = min(max(used/dt*100, 0), 100)
	}
	r.lastTotal, r.lastIdle = total, idle

	return memoryMB, cpu
}

// StaticSampler always reports the same readings.
type StaticSampler struct {
	MemoryMB   float64
	CPUPercent float64
}

// Sample implements SystemSampler.
func (s StaticSampler) Sample() (float64, float64) {
	return s.MemoryMB, s.CPUPercent
}
