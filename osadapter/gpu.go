package osadapter

import "context"

// noopGPU implements the GetGPUUsage half of Adapter. macOS exposes
// per-process GPU time only through IOKit/Metal performance-counter APIs
// gopsutil does not wrap; rather than shell out to a fragile, undocumented
// tool this always returns an empty map, matching the per-process score
// falling back to zero GPU share on any error (§6 get_gpu_usage).
type noopGPU struct{}

func (noopGPU) GetGPUUsage(ctx context.Context) map[uint32]uint64 {
	return map[uint32]uint64{}
}

// GetGPUUsage satisfies Adapter for GopsutilAdapter via the deliberate no-op.
func (a *GopsutilAdapter) GetGPUUsage(ctx context.Context) map[uint32]uint64 {
	return noopGPU{}.GetGPUUsage(ctx)
}
