package engine

import (
	"testing"

	"github.com/rogue-hunter/roguehunter/config"
	"github.com/rogue-hunter/roguehunter/model"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		PageInsRateMax:        1000,
		DiskIORateMax:         1000,
		FaultsRateMax:         1000,
		GPUTimeRateMax:        1000,
		RunnableRateMax:       1000,
		ContextSwitchRateMax:  1000,
		QoSInteractiveRateMax: 1000,
		MemMax:                1000,
		WakeupsRateMax:        1000,
		SyscallsRateMax:       1000,
		MachMessagesRateMax:   1000,
		ZombieMax:             5,
		IPCMin:                0.5,
		ThreadsMax:            64,
		StateMultipliers: map[model.ProcessState]float64{
			model.StateRunning: 1.0,
			model.StateStuck:   1.0,
		},
	}
}

func testBandsConfig() config.BandsConfig {
	return config.BandsConfig{
		MediumThreshold:   30,
		ElevatedThreshold: 45,
		HighThreshold:     60,
		CriticalThreshold: 80,
		TrackingThreshold: 30,
		ForensicsBand:     model.BandCritical,
	}
}

func TestScoreStuckProcessGetsFullBlockingWeight(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 20)
	records := []model.ProcessScore{
		{PID: 1, State: model.StateStuck},
		{PID: 2, State: model.StateRunning},
	}
	out := s.Score(records)

	// A stuck process's blocking component is pinned at 100 regardless of
	// its (here all-zero) raw rates, so it must outscore an otherwise
	// identical non-stuck process with the same all-zero rates.
	if out[0].Score <= out[1].Score {
		t.Errorf("stuck process score = %d, want > non-stuck process score %d", out[0].Score, out[1].Score)
	}
	// blocking carries 40% weight and no other category contributes with
	// all-zero rates, so the stuck process's score should land at exactly
	// 0.40*100 = 40 under the state multiplier of 1.0 configured above.
	if out[0].Score != 40 {
		t.Errorf("stuck process score = %d, want 40 (0.40 * 100 blocking, multiplier 1.0)", out[0].Score)
	}
	if out[0].Band != model.BandMedium {
		t.Errorf("stuck process band = %v, want %v", out[0].Band, model.BandMedium)
	}
}

func TestScoreIdleProcessIsLow(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 20)
	records := []model.ProcessScore{
		{PID: 1, State: model.StateIdle},
	}
	out := s.Score(records)
	if out[0].Score != 0 {
		t.Errorf("idle/quiet process score = %d, want 0", out[0].Score)
	}
	if out[0].Band != model.BandLow {
		t.Errorf("idle process band = %v, want %v", out[0].Band, model.BandLow)
	}
}

func TestScoreDisproportionalityIsMaxShare(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 20)
	records := []model.ProcessScore{
		{PID: 1, MemFootprint: 900, CPU: 0},
		{PID: 2, MemFootprint: 100, CPU: 0},
	}
	out := s.Score(records)
	if out[0].DominantResource != model.ResourceMemory {
		t.Errorf("dominant resource = %v, want %v", out[0].DominantResource, model.ResourceMemory)
	}
	if out[0].ShareMemory != 0.9 {
		t.Errorf("share memory = %v, want 0.9", out[0].ShareMemory)
	}
	if out[0].Disproportionality != out[0].ShareMemory {
		t.Errorf("disproportionality = %v, want equal to max share %v", out[0].Disproportionality, out[0].ShareMemory)
	}
}

func TestScoreZeroTotalsYieldZeroShares(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 20)
	records := []model.ProcessScore{{PID: 1}}
	out := s.Score(records)
	if out[0].Disproportionality != 0 {
		t.Errorf("disproportionality with all-zero totals = %v, want 0", out[0].Disproportionality)
	}
	if out[0].DominantResource != model.ResourceNone {
		t.Errorf("dominant resource with all-zero totals = %v, want %v", out[0].DominantResource, model.ResourceNone)
	}
}

func TestSelectAlwaysIncludesStuckProcesses(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 1)
	records := []model.ProcessScore{
		{PID: 1, Score: 5, State: model.StateStuck},
		{PID: 2, Score: 90, State: model.StateRunning},
		{PID: 3, Score: 80, State: model.StateRunning},
	}
	out := s.Select(records)

	foundStuck := false
	for _, r := range out {
		if r.PID == 1 {
			foundStuck = true
		}
	}
	if !foundStuck {
		t.Errorf("Select() dropped a stuck process even though maxRogues=1: %v", out)
	}
}

func TestSelectOrdersByScoreDescending(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 10)
	records := []model.ProcessScore{
		{PID: 1, Score: 10, State: model.StateRunning},
		{PID: 2, Score: 90, State: model.StateRunning},
		{PID: 3, Score: 50, State: model.StateRunning},
	}
	out := s.Select(records)
	if len(out) != 3 {
		t.Fatalf("Select() returned %d records, want 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Errorf("Select() not sorted descending: %v", out)
		}
	}
}

func TestSelectCapsAtMaxRogues(t *testing.T) {
	s := NewScorer(testScoringConfig(), testBandsConfig(), 2)
	records := []model.ProcessScore{
		{PID: 1, Score: 10, State: model.StateRunning},
		{PID: 2, Score: 90, State: model.StateRunning},
		{PID: 3, Score: 50, State: model.StateRunning},
	}
	out := s.Select(records)
	if len(out) != 2 {
		t.Errorf("Select() returned %d records, want capped at 2", len(out))
	}
}

func TestMaxScoreEmpty(t *testing.T) {
	if got := MaxScore(nil); got != 0 {
		t.Errorf("MaxScore(nil) = %d, want 0", got)
	}
}

func TestMaxScoreIsAtLeastPeak(t *testing.T) {
	rogues := []model.ProcessScore{{Score: 10}, {Score: 90}, {Score: 20}}
	got := MaxScore(rogues)
	if got < 90 {
		t.Errorf("MaxScore() = %d, want >= peak 90", got)
	}
}

func TestMaxScoreSingleRogueEqualsItsScore(t *testing.T) {
	rogues := []model.ProcessScore{{Score: 42}}
	if got := MaxScore(rogues); got != 42 {
		t.Errorf("MaxScore(single rogue) = %d, want 42", got)
	}
}
