package engine

import (
	"math"
	"sort"

	"github.com/rogue-hunter/roguehunter/config"
	"github.com/rogue-hunter/roguehunter/model"
)

// Scorer turns raw sampler records into fully-scored ProcessScores: category
// scores, the combined band-classified score, resource shares, and the
// emitted selection (§4.2).
type Scorer struct {
	scoring config.ScoringConfig
	bands   config.BandsConfig
	maxRogues int
}

// NewScorer returns a Scorer configured with the given scoring/band config
// and the maximum number of rogues to emit per tick.
func NewScorer(scoring config.ScoringConfig, bands config.BandsConfig, maxRogues int) *Scorer {
	return &Scorer{scoring: scoring, bands: bands, maxRogues: maxRogues}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func norm(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(value / max)
}

func stateMultiplier(cfg config.ScoringConfig, state model.ProcessState) float64 {
	if m, ok := cfg.StateMultipliers[state]; ok {
		return m
	}
	return 1.0
}

// Score computes category scores, the combined score/band, and resource
// shares for every record in place, returning the same slice (§4.2.1-4.2.4).
func (s *Scorer) Score(records []model.ProcessScore) []model.ProcessScore {
	var totalCPU, totalGPU, totalMem, totalDisk, totalWakeups float64
	for _, r := range records {
		totalCPU += r.CPU
		totalGPU += r.GPUTimeRate
		totalMem += float64(r.MemFootprint)
		totalDisk += r.DiskBytesRWRate
		totalWakeups += r.WakeupsRate
	}

	for i := range records {
		r := &records[i]

		blocking := 100.0
		if r.State != model.StateStuck {
			blocking = 30*norm(r.PageInsRate, s.scoring.PageInsRateMax) +
				30*norm(r.DiskBytesRWRate, s.scoring.DiskIORateMax) +
				20*norm(r.FaultsRate, s.scoring.FaultsRateMax) +
				20*norm(r.GPUTimeRate, s.scoring.GPUTimeRateMax)
		}

		contention := 30*norm(r.RunnableRate, s.scoring.RunnableRateMax) +
			30*norm(r.ContextSwitchRate, s.scoring.ContextSwitchRateMax) +
			25*norm(r.CPU, 100) +
			15*norm(r.QoSInteractiveRate, s.scoring.QoSInteractiveRateMax)

		pressure := 30*norm(float64(r.MemFootprint), s.scoring.MemMax) +
			25*norm(r.WakeupsRate, s.scoring.WakeupsRateMax) +
			15*norm(r.SyscallsRate, s.scoring.SyscallsRateMax) +
			15*norm(r.MachMessagesRate, s.scoring.MachMessagesRateMax) +
			15*norm(float64(r.ZombieChildren), s.scoring.ZombieMax)

		ipcPenalty := 0.0
		if s.scoring.IPCMin > 0 && r.IPC < s.scoring.IPCMin {
			ipcPenalty = math.Max(0, 1-r.IPC/s.scoring.IPCMin)
		}
		cyclesPresent := 0.0
		if r.Cycles > 0 {
			cyclesPresent = 1
		}
		efficiency := 60*ipcPenalty*cyclesPresent + 40*norm(float64(r.ThreadCount), s.scoring.ThreadsMax)

		base := 0.40*blocking + 0.30*contention + 0.20*pressure + 0.10*efficiency
		base *= stateMultiplier(s.scoring, r.State)

		score := int(base)
		if score > 100 {
			score = 100
		}
		if score < 0 {
			score = 0
		}
		r.Score = score
		r.Band = s.bands.Classify(score)

		r.ShareCPU = safeShare(r.CPU, totalCPU)
		r.ShareGPU = safeShare(r.GPUTimeRate, totalGPU)
		r.ShareMemory = safeShare(float64(r.MemFootprint), totalMem)
		r.ShareDisk = safeShare(r.DiskBytesRWRate, totalDisk)
		r.ShareWakeups = safeShare(r.WakeupsRate, totalWakeups)

		best := struct {
			Resource model.DominantResource
			Share    float64
		}{model.ResourceNone, 0}
		for _, sh := range r.Shares() {
			if sh.Share > best.Share {
				best = sh
			}
		}
		r.Disproportionality = best.Share
		r.DominantResource = best.Resource
	}

	return records
}

func safeShare(value, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return value / total
}

// Select applies the emission policy (§4.2.5): stuck processes first, then
// the top-scoring remainder up to maxRogues, each group sorted by score
// descending. The result never exceeds maxRogues: when there are more stuck
// processes than that, only the highest-scoring stuck ones are kept.
func (s *Scorer) Select(records []model.ProcessScore) []model.ProcessScore {
	stuck := make([]model.ProcessScore, 0)
	rest := make([]model.ProcessScore, 0, len(records))
	for _, r := range records {
		if r.State == model.StateStuck {
			stuck = append(stuck, r)
		} else {
			rest = append(rest, r)
		}
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i].Score > stuck[j].Score })
	sort.Slice(rest, func(i, j int) bool { return rest[i].Score > rest[j].Score })

	out := stuck
	remaining := s.maxRogues - len(out)
	if remaining > 0 {
		if remaining > len(rest) {
			remaining = len(rest)
		}
		out = append(out, rest[:remaining]...)
	} else if s.maxRogues >= 0 && len(out) > s.maxRogues {
		out = out[:s.maxRogues]
	}
	return out
}

// MaxScore computes the hybrid peak/RMS summary score (§4.2.6).
func MaxScore(rogues []model.ProcessScore) int {
	if len(rogues) == 0 {
		return 0
	}
	peak := 0
	var sumSq float64
	for _, r := range rogues {
		if r.Score > peak {
			peak = r.Score
		}
		sumSq += float64(r.Score) * float64(r.Score)
	}
	rms := math.Sqrt(sumSq / float64(len(rogues)))
	if rms > float64(peak) {
		return int(math.Round(rms))
	}
	return peak
}
