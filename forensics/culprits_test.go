package forensics

import (
	"testing"

	"github.com/rogue-hunter/roguehunter/model"
)

func TestIdentifyCulpritsKeepsPeakScorePerPID(t *testing.T) {
	contents := model.BufferContents{
		Samples: []model.RingSample{
			{Rogues: []model.ProcessScore{
				{PID: 1, Command: "a", Score: 20},
				{PID: 2, Command: "b", Score: 90},
			}},
			{Rogues: []model.ProcessScore{
				{PID: 1, Command: "a", Score: 60},
			}},
		},
	}

	culprits := IdentifyCulprits(contents)
	byPID := make(map[uint32]model.Culprit)
	for _, c := range culprits {
		byPID[c.PID] = c
	}

	if byPID[1].Score != 60 {
		t.Errorf("pid 1 peak score = %d, want 60 (later, higher sample)", byPID[1].Score)
	}
	if byPID[2].Score != 90 {
		t.Errorf("pid 2 peak score = %d, want 90", byPID[2].Score)
	}
}

func TestIdentifyCulpritsSortedDescending(t *testing.T) {
	contents := model.BufferContents{
		Samples: []model.RingSample{
			{Rogues: []model.ProcessScore{
				{PID: 1, Score: 10},
				{PID: 2, Score: 90},
				{PID: 3, Score: 50},
			}},
		},
	}

	culprits := IdentifyCulprits(contents)
	if len(culprits) != 3 {
		t.Fatalf("len(culprits) = %d, want 3", len(culprits))
	}
	for i := 1; i < len(culprits); i++ {
		if culprits[i].Score > culprits[i-1].Score {
			t.Errorf("culprits not sorted descending: %v", culprits)
		}
	}
}

func TestIdentifyCulpritsEmptyBuffer(t *testing.T) {
	culprits := IdentifyCulprits(model.BufferContents{})
	if len(culprits) != 0 {
		t.Errorf("IdentifyCulprits(empty) = %v, want empty", culprits)
	}
}
