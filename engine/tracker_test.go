package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/rogue-hunter/roguehunter/config"
	"github.com/rogue-hunter/roguehunter/model"
)

type fakeEvent struct {
	event    model.ProcessEvent
	peak     []model.ProcessScore
	snapshots []model.ProcessSnapshot
}

type fakeTrackerStore struct {
	mu       sync.Mutex
	nextID   int64
	nextSnap int64
	events   map[int64]*fakeEvent
	openOnLoad []model.ProcessEvent
}

func newFakeTrackerStore() *fakeTrackerStore {
	return &fakeTrackerStore{events: make(map[int64]*fakeEvent)}
}

func (f *fakeTrackerStore) CreateEvent(e model.ProcessEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	f.events[e.ID] = &fakeEvent{event: e}
	return e.ID, nil
}

func (f *fakeTrackerStore) InsertSnapshot(eventID int64, snapType model.SnapshotType, score model.ProcessScore) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSnap++
	ev := f.events[eventID]
	ev.snapshots = append(ev.snapshots, model.ProcessSnapshot{ID: f.nextSnap, EventID: eventID, SnapshotType: snapType, Score: score})
	return f.nextSnap, nil
}

func (f *fakeTrackerStore) UpdatePeak(eventID int64, peakScore int, peakBand model.Band, peakSnapshotID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := f.events[eventID]
	ev.event.PeakScore = peakScore
	ev.event.PeakBand = peakBand
	ev.event.PeakSnapshotID = &peakSnapshotID
	return nil
}

func (f *fakeTrackerStore) CloseEvent(eventID int64, exitTime float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := f.events[eventID]
	t := exitTime
	ev.event.ExitTime = &t
	return nil
}

func (f *fakeTrackerStore) LoadOpenEvents(bootTime int64) ([]model.ProcessEvent, error) {
	return f.openOnLoad, nil
}

func (f *fakeTrackerStore) isOpen(eventID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].event.Open()
}

func (f *fakeTrackerStore) snapshotTypes(eventID int64) []model.SnapshotType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SnapshotType
	for _, s := range f.events[eventID].snapshots {
		out = append(out, s.SnapshotType)
	}
	return out
}

func testTrackerBands() config.BandsConfig {
	return config.BandsConfig{
		MediumThreshold:           30,
		ElevatedThreshold:         45,
		HighThreshold:             60,
		CriticalThreshold:         80,
		TrackingThreshold:         30,
		ExitStabilitySamples:      2,
		EventCooldownSeconds:      30,
		MediumCheckpointSamples:   10,
		ElevatedCheckpointSamples: 3,
		ForensicsBand:             model.BandCritical,
	}
}

func newTestTracker(t *testing.T, store *fakeTrackerStore, onTrigger ForensicsTrigger) *Tracker {
	t.Helper()
	tr, err := NewTracker(store, testTrackerBands(), 1000, 30*time.Second, 2, onTrigger)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	return tr
}

func TestTrackerFirstCrossingOpensEventWithEntrySnapshot(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, nil)

	tr.Process([]model.ProcessScore{{PID: 42, Score: 50, Band: model.BandElevated, CapturedAt: 1}}, 1)

	ts, ok := tr.tracked[42]
	if !ok {
		t.Fatal("pid 42 not tracked after first crossing")
	}
	if !store.isOpen(ts.eventID) {
		t.Error("event should remain open after first crossing")
	}
	types := store.snapshotTypes(ts.eventID)
	if len(types) != 1 || types[0] != model.SnapshotEntry {
		t.Errorf("snapshot types = %v, want [entry]", types)
	}
}

func TestTrackerBelowTrackingThresholdNeverOpensEvent(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, nil)

	tr.Process([]model.ProcessScore{{PID: 1, Score: 10, Band: model.BandMedium, CapturedAt: 1}}, 1)

	if _, ok := tr.tracked[1]; ok {
		t.Error("pid should not be tracked below TrackingThreshold")
	}
}

func TestTrackerFirstCrossingIntoForensicsBandTriggers(t *testing.T) {
	store := newFakeTrackerStore()
	var triggered []string
	tr := newTestTracker(t, store, func(eventID int64, reason string) {
		triggered = append(triggered, reason)
	})

	tr.Process([]model.ProcessScore{{PID: 7, Score: 90, Band: model.BandCritical, CapturedAt: 1}}, 1)

	if len(triggered) != 1 {
		t.Fatalf("forensics triggered %d times, want 1: %v", len(triggered), triggered)
	}
}

func TestTrackerEscalationTriggersOnlyOnNewForensicsCrossing(t *testing.T) {
	store := newFakeTrackerStore()
	var triggered []string
	tr := newTestTracker(t, store, func(eventID int64, reason string) {
		triggered = append(triggered, reason)
	})

	tr.Process([]model.ProcessScore{{PID: 7, Score: 50, Band: model.BandElevated, CapturedAt: 1}}, 1)
	if len(triggered) != 0 {
		t.Fatalf("should not trigger on sub-forensics entry: %v", triggered)
	}

	tr.Process([]model.ProcessScore{{PID: 7, Score: 85, Band: model.BandCritical, CapturedAt: 2}}, 2)
	if len(triggered) != 1 {
		t.Fatalf("should trigger once on escalation into forensics band: %v", triggered)
	}

	tr.Process([]model.ProcessScore{{PID: 7, Score: 95, Band: model.BandCritical, CapturedAt: 3}}, 3)
	if len(triggered) != 1 {
		t.Fatalf("should not re-trigger on a higher score within the same band: %v", triggered)
	}
}

func TestTrackerPeakUpdateInsertsCheckpointSnapshot(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, nil)

	tr.Process([]model.ProcessScore{{PID: 5, Score: 40, Band: model.BandElevated, CapturedAt: 1}}, 1)
	ts := tr.tracked[5]

	tr.Process([]model.ProcessScore{{PID: 5, Score: 55, Band: model.BandHigh, CapturedAt: 2}}, 2)

	types := store.snapshotTypes(ts.eventID)
	if len(types) != 2 || types[1] != model.SnapshotCheckpoint {
		t.Errorf("snapshot types = %v, want [entry checkpoint]", types)
	}
	if ts.peakScore != 55 {
		t.Errorf("peakScore = %d, want 55", ts.peakScore)
	}
}

func TestTrackerExitStabilityDelaysClose(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, nil)

	tr.Process([]model.ProcessScore{{PID: 9, Score: 50, Band: model.BandElevated, CapturedAt: 1}}, 1)
	ts := tr.tracked[9]

	tr.Process([]model.ProcessScore{{PID: 9, Score: 5, Band: model.BandLow, CapturedAt: 2}}, 2)
	if !store.isOpen(ts.eventID) {
		t.Fatal("event closed after only one below-threshold sample, exitStability=2")
	}
	if _, stillTracked := tr.tracked[9]; !stillTracked {
		t.Fatal("pid should remain tracked during exit-stability countdown")
	}

	tr.Process([]model.ProcessScore{{PID: 9, Score: 5, Band: model.BandLow, CapturedAt: 3}}, 3)
	if store.isOpen(ts.eventID) {
		t.Error("event should close after exitStability consecutive below-threshold samples")
	}
	if _, stillTracked := tr.tracked[9]; stillTracked {
		t.Error("pid should no longer be tracked after close")
	}
}

func TestTrackerAbsentPIDClosesEvent(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, nil)

	tr.Process([]model.ProcessScore{{PID: 3, Score: 50, Band: model.BandElevated, CapturedAt: 1}}, 1)
	ts := tr.tracked[3]

	tr.Process([]model.ProcessScore{}, 7)

	if store.isOpen(ts.eventID) {
		t.Error("event should close when pid disappears from rogues entirely")
	}
	if _, stillTracked := tr.tracked[3]; stillTracked {
		t.Error("pid should be removed from tracked map once absent")
	}
	exitTime := store.events[ts.eventID].event.ExitTime
	if exitTime == nil || *exitTime != 7 {
		t.Errorf("exit time = %v, want 7 (the tick's timestamp, not epoch zero)", exitTime)
	}
	if got := tr.cooldowns[3]; got != 7 {
		t.Errorf("cooldowns[3] = %v, want 7 (the tick's timestamp, not epoch zero)", got)
	}
}

func TestTrackerCooldownPreventsImmediateReentry(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, nil)

	tr.Process([]model.ProcessScore{{PID: 11, Score: 50, Band: model.BandElevated, CapturedAt: 1}}, 1)
	tr.Process([]model.ProcessScore{{PID: 11, Score: 5, Band: model.BandLow, CapturedAt: 2}}, 2)
	tr.Process([]model.ProcessScore{{PID: 11, Score: 5, Band: model.BandLow, CapturedAt: 3}}, 3)

	if _, stillTracked := tr.tracked[11]; stillTracked {
		t.Fatal("pid should be closed out before re-entry test begins")
	}

	tr.Process([]model.ProcessScore{{PID: 11, Score: 50, Band: model.BandElevated, CapturedAt: 4}}, 4)
	if _, tracked := tr.tracked[11]; tracked {
		t.Error("re-entry within cooldown window should be suppressed")
	}

	tr.Process([]model.ProcessScore{{PID: 11, Score: 50, Band: model.BandElevated, CapturedAt: 40}}, 40)
	if _, tracked := tr.tracked[11]; !tracked {
		t.Error("re-entry after cooldown window elapses should be allowed")
	}
}

func TestTrackerSafeTriggerRecoversFromPanic(t *testing.T) {
	store := newFakeTrackerStore()
	tr := newTestTracker(t, store, func(eventID int64, reason string) {
		panic("boom")
	})

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic from forensics callback leaked out of Process(): %v", r)
		}
	}()
	tr.Process([]model.ProcessScore{{PID: 13, Score: 90, Band: model.BandCritical, CapturedAt: 1}}, 1)

	if _, ok := tr.tracked[13]; !ok {
		t.Error("tracker state should remain consistent after a panicking callback")
	}
}
