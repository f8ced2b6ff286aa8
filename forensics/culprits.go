package forensics

import (
	"sort"

	"github.com/rogue-hunter/roguehunter/model"
)

// IdentifyCulprits aggregates a frozen ring buffer's rogues by PID, keeping
// each process's peak score across all retained samples, and returns them
// sorted by score descending (§4.5 step 5).
func IdentifyCulprits(contents model.BufferContents) []model.Culprit {
	peak := make(map[uint32]model.Culprit)
	for _, sample := range contents.Samples {
		for _, r := range sample.Rogues {
			existing, ok := peak[r.PID]
			if !ok || r.Score > existing.Score {
				peak[r.PID] = model.Culprit{
					PID:                r.PID,
					Command:            r.Command,
					Score:              r.Score,
					DominantResource:   r.DominantResource,
					Disproportionality: r.Disproportionality,
				}
			}
		}
	}

	culprits := make([]model.Culprit, 0, len(peak))
	for _, c := range peak {
		culprits = append(culprits, c)
	}
	sort.Slice(culprits, func(i, j int) bool { return culprits[i].Score > culprits[j].Score })
	return culprits
}
