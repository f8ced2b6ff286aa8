package engine

import (
	"testing"

	"github.com/rogue-hunter/roguehunter/model"
)

func sampleWithScore(score int) model.RingSample {
	return model.RingSample{MaxScore: score}
}

func TestRingPushWithinCapacity(t *testing.T) {
	r := NewRing(3)
	r.Push(sampleWithScore(1))
	r.Push(sampleWithScore(2))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	got := r.Samples()
	if got[0].MaxScore != 1 || got[1].MaxScore != 2 {
		t.Errorf("Samples() = %v, want oldest-first [1, 2]", got)
	}
}

func TestRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewRing(2)
	r.Push(sampleWithScore(1))
	r.Push(sampleWithScore(2))
	r.Push(sampleWithScore(3))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	got := r.Samples()
	if got[0].MaxScore != 2 || got[1].MaxScore != 3 {
		t.Errorf("Samples() = %v, want [2, 3] after eviction", got)
	}
}

func TestRingIsEmpty(t *testing.T) {
	r := NewRing(2)
	if !r.IsEmpty() {
		t.Error("new ring should be empty")
	}
	r.Push(sampleWithScore(1))
	if r.IsEmpty() {
		t.Error("ring with one sample should not be empty")
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(2)
	r.Push(sampleWithScore(1))
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", r.Len())
	}
	r.Push(sampleWithScore(9))
	got := r.Samples()
	if len(got) != 1 || got[0].MaxScore != 9 {
		t.Errorf("Samples() after Clear()+Push = %v, want single sample with score 9", got)
	}
}

func TestRingFreezeIsIndependentSnapshot(t *testing.T) {
	r := NewRing(2)
	r.Push(sampleWithScore(1))
	frozen := r.Freeze()

	r.Push(sampleWithScore(2))
	r.Push(sampleWithScore(3))

	if len(frozen.Samples) != 1 || frozen.Samples[0].MaxScore != 1 {
		t.Errorf("frozen snapshot mutated by later pushes: %v", frozen.Samples)
	}
}

func TestNewRingClampsNonPositiveCapacity(t *testing.T) {
	r := NewRing(0)
	r.Push(sampleWithScore(1))
	r.Push(sampleWithScore(2))
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 for clamped capacity-1 ring", r.Len())
	}
}
