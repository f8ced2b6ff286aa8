// Package collector implements the per-tick process sampler (§4.1): it
// walks every live PID once per tick, joins the OS adapter's raw counters,
// and turns them into rate-annotated records ready for scoring. It holds no
// opinion about scoring, selection, or bands — that is engine's job.
package collector

import (
	"context"
	"time"

	"github.com/rogue-hunter/roguehunter/model"
	"github.com/rogue-hunter/roguehunter/osadapter"
	"github.com/rogue-hunter/roguehunter/util"
)

// prevCounters is the cumulative-counter snapshot retained per PID between
// ticks, used to derive rates (§4.1 step 6-7).
type prevCounters struct {
	capturedAt           time.Time
	cpuTimeNs            uint64
	diskBytesRW          uint64
	energyNJ             uint64
	pageIns              uint64
	contextSwitches      uint64
	syscalls             uint64
	machMessages         uint64
	wakeups              uint64
	pageFaults           uint64
	runnableTimeNs       uint64
	qosInteractiveTimeNs uint64
	gpuTimeNs            uint64
}

// Sampler owns the previous-tick counter cache and the OS adapter used to
// fill each new tick's records.
type Sampler struct {
	adapter  osadapter.Adapter
	timebase osadapter.Timebase
	prev     map[uint32]prevCounters
	lastTick time.Time
}

// NewSampler returns a ready-to-use Sampler over the given adapter.
func NewSampler(adapter osadapter.Adapter) *Sampler {
	return &Sampler{
		adapter: adapter,
		prev:    make(map[uint32]prevCounters),
	}
}

// Result is one tick's raw output: unscored per-process records plus the
// number of processes sampled this tick (the PIDs every adapter call could
// read), handed to the scorer.
type Result struct {
	Records      []model.ProcessScore
	ProcessCount int
	ElapsedMs    int
}

// Collect runs one sampling tick (§4.1 steps 1-10). Errors from individual
// adapter calls for a given PID are not surfaced: that PID is simply
// skipped. Only a failure to enumerate PIDs at all is returned as an error.
func (s *Sampler) Collect(ctx context.Context) (Result, error) {
	start := time.Now()

	if s.timebase == (osadapter.Timebase{}) {
		s.timebase = s.adapter.GetTimebase()
	}

	now := time.Now()
	var dtWall time.Duration
	if !s.lastTick.IsZero() {
		dtWall = now.Sub(s.lastTick)
	}
	s.lastTick = now

	gpuUsage := s.adapter.GetGPUUsage(ctx)

	pids, err := s.adapter.ListAllPIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	records := make([]model.ProcessScore, 0, len(pids))
	seen := make(map[uint32]bool, len(pids))
	zombieChildrenByParent := make(map[uint32]int)

	for _, pid := range pids {
		if pid == 0 {
			continue
		}
		ru, ok := s.adapter.GetRusage(ctx, pid)
		if !ok {
			continue
		}
		ti, ok := s.adapter.GetTaskInfo(ctx, pid)
		if !ok {
			continue
		}
		bi, ok := s.adapter.GetBsdInfo(ctx, pid)
		if !ok {
			continue
		}
		seen[pid] = true

		state := model.BsdStatusName(bi.StatusCode)
		if state == model.StateZombie {
			zombieChildrenByParent[bi.ParentPID]++
		}

		rec := model.ProcessScore{
			PID:                  pid,
			ParentPID:            bi.ParentPID,
			Command:              bi.Command,
			CapturedAt:           float64(now.Unix()) + float64(now.Nanosecond())/1e9,
			CPUTimeNs:            ru.UserCPUNs + ru.SystemCPUNs,
			DiskBytesRW:          ru.DiskBytesRead + ru.DiskBytesWritten,
			EnergyNJ:             ru.BilledEnergyNJ,
			PageIns:              ru.PageIns,
			ContextSwitches:      ti.ContextSwitches,
			Syscalls:             ti.SyscallsMach + ti.SyscallsUnix,
			MachMessages:         ti.MachMessages,
			Wakeups:              ti.ContextSwitches, // proxy: adapter has no independent wakeup counter
			PageFaults:           ti.PageFaults,
			RunnableTimeNs:       ru.RunnableTimeNs,
			QoSInteractiveTimeNs: ru.QoSInteractiveTimeNs,
			GPUTimeNs:            gpuUsage[pid],
			MemFootprint:         ru.FootprintBytes,
			MemFootprintLifeMax:  ru.FootprintLifeMaxBytes,
			ThreadCount:          ti.ThreadCount,
			Priority:             ti.Priority,
			Instructions:         ru.Instructions,
			Cycles:               ru.Cycles,
			State:                state,
		}
		if rec.Cycles > 0 {
			rec.IPC = float64(rec.Instructions) / float64(rec.Cycles)
		}
		if rec.Command == "" {
			rec.Command = s.adapter.GetProcessName(ctx, pid)
		}

		prev, hadPrev := s.prev[pid]
		if hadPrev && dtWall > 0 {
			rec.CPU = 100 * float64(util.Delta(prev.cpuTimeNs, rec.CPUTimeNs)) / float64(dtWall.Nanoseconds())
			rec.DiskBytesRWRate = util.Rate(prev.diskBytesRW, rec.DiskBytesRW, dtWall)
			rec.EnergyRate = util.Rate(prev.energyNJ, rec.EnergyNJ, dtWall)
			rec.PageInsRate = util.Rate(prev.pageIns, rec.PageIns, dtWall)
			rec.FaultsRate = util.Rate(prev.pageFaults, rec.PageFaults, dtWall)
			rec.ContextSwitchRate = util.Rate(prev.contextSwitches, rec.ContextSwitches, dtWall)
			rec.SyscallsRate = util.Rate(prev.syscalls, rec.Syscalls, dtWall)
			rec.MachMessagesRate = util.Rate(prev.machMessages, rec.MachMessages, dtWall)
			rec.WakeupsRate = util.Rate(prev.wakeups, rec.Wakeups, dtWall)
			rec.RunnableRate = util.Rate(prev.runnableTimeNs, rec.RunnableTimeNs, dtWall) / 1e6
			rec.QoSInteractiveRate = util.Rate(prev.qosInteractiveTimeNs, rec.QoSInteractiveTimeNs, dtWall) / 1e6
			rec.GPUTimeRate = util.Rate(prev.gpuTimeNs, rec.GPUTimeNs, dtWall) / 1e6
		}

		s.prev[pid] = prevCounters{
			capturedAt:           now,
			cpuTimeNs:            rec.CPUTimeNs,
			diskBytesRW:          rec.DiskBytesRW,
			energyNJ:             rec.EnergyNJ,
			pageIns:              rec.PageIns,
			contextSwitches:      rec.ContextSwitches,
			syscalls:             rec.Syscalls,
			machMessages:         rec.MachMessages,
			wakeups:              rec.Wakeups,
			pageFaults:           rec.PageFaults,
			runnableTimeNs:       rec.RunnableTimeNs,
			qosInteractiveTimeNs: rec.QoSInteractiveTimeNs,
			gpuTimeNs:            rec.GPUTimeNs,
		}

		records = append(records, rec)
	}

	for pid := range s.prev {
		if !seen[pid] {
			delete(s.prev, pid)
		}
	}

	for i := range records {
		records[i].ZombieChildren = zombieChildrenByParent[records[i].PID]
	}

	return Result{
		Records:      records,
		ProcessCount: len(records),
		ElapsedMs:    int(time.Since(start).Milliseconds()),
	}, nil
}
