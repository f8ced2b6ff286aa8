package engine

import (
	"log"
	"time"

	"github.com/rogue-hunter/roguehunter/config"
	"github.com/rogue-hunter/roguehunter/model"
)

// TrackerStore is the persistence surface the Tracker needs: opening and
// closing events, writing snapshots, and recovering open events on
// startup. storage.DB implements this.
type TrackerStore interface {
	CreateEvent(e model.ProcessEvent) (int64, error)
	InsertSnapshot(eventID int64, snapType model.SnapshotType, score model.ProcessScore) (int64, error)
	UpdatePeak(eventID int64, peakScore int, peakBand model.Band, peakSnapshotID int64) error
	CloseEvent(eventID int64, exitTime float64) error
	LoadOpenEvents(bootTime int64) ([]model.ProcessEvent, error)
}

// ForensicsTrigger is invoked when a tracked PID crosses into, or escalates
// within, the configured forensics band. Implementations must not block the
// tracker; callback failures are logged, never retried, and never affect
// tracker state (§4.4 failure semantics).
type ForensicsTrigger func(eventID int64, reason string)

type trackedState struct {
	eventID                int64
	pid                    uint32
	command                string
	peakScore              int
	peakBand               model.Band
	peakSnapshotID         int64
	samplesSinceCheckpoint int
	samplesBelowThreshold  int
}

// Tracker implements the band-transition state machine (§4.4): it watches
// the rogues emitted each tick and opens/updates/closes ProcessEvents.
type Tracker struct {
	store    TrackerStore
	bands    config.BandsConfig
	bootTime int64
	onTrigger ForensicsTrigger

	cooldown      time.Duration
	exitStability int

	tracked   map[uint32]*trackedState
	cooldowns map[uint32]float64 // pid -> last close time (captured_at seconds)
}

// NewTracker constructs a Tracker and loads any events already open for the
// current boot (§4.4.2). Stale open events from a prior boot are left
// untouched — they are not current tracking and are never retroactively
// closed here.
func NewTracker(store TrackerStore, bands config.BandsConfig, bootTime int64, cooldown time.Duration, exitStability int, onTrigger ForensicsTrigger) (*Tracker, error) {
	if exitStability <= 0 {
		exitStability = 1
	}
	t := &Tracker{
		store:         store,
		exitStability: exitStability,
		bands:     bands,
		bootTime:  bootTime,
		cooldown:  cooldown,
		onTrigger: onTrigger,
		tracked:   make(map[uint32]*trackedState),
		cooldowns: make(map[uint32]float64),
	}

	events, err := store.LoadOpenEvents(bootTime)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		peakSnap := int64(0)
		if e.PeakSnapshotID != nil {
			peakSnap = *e.PeakSnapshotID
		}
		t.tracked[e.PID] = &trackedState{
			eventID:        e.ID,
			pid:            e.PID,
			command:        e.Command,
			peakScore:      e.PeakScore,
			peakBand:       e.PeakBand,
			peakSnapshotID: peakSnap,
		}
	}
	return t, nil
}

func checkpointInterval(bands config.BandsConfig, band model.Band) int {
	switch band {
	case model.BandMedium:
		return bands.MediumCheckpointSamples
	case model.BandElevated:
		return bands.ElevatedCheckpointSamples
	case model.BandHigh, model.BandCritical:
		return 1
	default:
		return 0
	}
}

func bandAtLeast(b, floor model.Band) bool {
	rank := map[model.Band]int{
		model.BandLow:      0,
		model.BandMedium:   1,
		model.BandElevated: 2,
		model.BandHigh:     3,
		model.BandCritical: 4,
	}
	return rank[b] >= rank[floor]
}

// Process runs one tick of the state machine over the emitted rogues. now is
// the current tick's captured-at timestamp (sample-local virtual time), used
// to anchor events for PIDs that vanish from rogues entirely rather than
// transitioning below the tracking threshold.
func (t *Tracker) Process(rogues []model.ProcessScore, now float64) {
	seen := make(map[uint32]bool, len(rogues))

	for _, r := range rogues {
		seen[r.PID] = true

		if ts, ok := t.tracked[r.PID]; ok {
			t.onScoreForTracked(ts, r)
			continue
		}
		if r.Band == model.BandLow {
			continue
		}
		if r.Score < t.bands.TrackingThreshold {
			continue
		}
		t.onFirstCrossing(r)
	}

	for pid, ts := range t.tracked {
		if seen[pid] {
			continue
		}
		if err := t.store.CloseEvent(ts.eventID, now); err != nil {
			log.Printf("roguehunter: tracker: close absent event %d: %v", ts.eventID, err)
		}
		t.cooldowns[pid] = now
		delete(t.tracked, pid)
	}
}

func (t *Tracker) onFirstCrossing(r model.ProcessScore) {
	if last, ok := t.cooldowns[r.PID]; ok && r.CapturedAt-last < t.cooldown.Seconds() {
		return
	}

	peakSnap := (*int64)(nil)
	event := model.ProcessEvent{
		PID:        r.PID,
		Command:    r.Command,
		BootTime:   t.bootTime,
		EntryTime:  r.CapturedAt,
		EntryBand:  r.Band,
		PeakBand:   r.Band,
		PeakScore:  r.Score,
		PeakSnapshotID: peakSnap,
	}
	eventID, err := t.store.CreateEvent(event)
	if err != nil {
		log.Printf("roguehunter: tracker: create event for pid %d: %v", r.PID, err)
		return
	}
	snapID, err := t.store.InsertSnapshot(eventID, model.SnapshotEntry, r)
	if err != nil {
		log.Printf("roguehunter: tracker: entry snapshot for event %d: %v", eventID, err)
	}
	if err := t.store.UpdatePeak(eventID, r.Score, r.Band, snapID); err != nil {
		log.Printf("roguehunter: tracker: update peak for event %d: %v", eventID, err)
	}

	t.tracked[r.PID] = &trackedState{
		eventID:        eventID,
		pid:            r.PID,
		command:        r.Command,
		peakScore:      r.Score,
		peakBand:       r.Band,
		peakSnapshotID: snapID,
	}

	if bandAtLeast(r.Band, t.bands.ForensicsBand) {
		t.safeTrigger(eventID, "band_entry_"+r.Band.String())
	}
}

func (t *Tracker) onScoreForTracked(ts *trackedState, r model.ProcessScore) {
	if r.Score >= t.bands.TrackingThreshold {
		ts.samplesBelowThreshold = 0

		if r.Score > ts.peakScore {
			snapID, err := t.store.InsertSnapshot(ts.eventID, model.SnapshotCheckpoint, r)
			if err != nil {
				log.Printf("roguehunter: tracker: checkpoint snapshot for event %d: %v", ts.eventID, err)
			} else {
				oldBand := ts.peakBand
				ts.peakSnapshotID = snapID
				ts.peakScore = r.Score
				ts.peakBand = r.Band
				if err := t.store.UpdatePeak(ts.eventID, ts.peakScore, ts.peakBand, ts.peakSnapshotID); err != nil {
					log.Printf("roguehunter: tracker: update peak for event %d: %v", ts.eventID, err)
				}
				if bandAtLeast(r.Band, t.bands.ForensicsBand) && !bandAtLeast(oldBand, t.bands.ForensicsBand) {
					t.safeTrigger(ts.eventID, "peak_escalation_"+r.Band.String())
				}
			}
			ts.samplesSinceCheckpoint = 0
		} else {
			ts.samplesSinceCheckpoint++
			interval := checkpointInterval(t.bands, r.Band)
			if interval > 0 && ts.samplesSinceCheckpoint >= interval {
				if _, err := t.store.InsertSnapshot(ts.eventID, model.SnapshotCheckpoint, r); err != nil {
					log.Printf("roguehunter: tracker: periodic checkpoint for event %d: %v", ts.eventID, err)
				}
				ts.samplesSinceCheckpoint = 0
			}
		}
		return
	}

	ts.samplesBelowThreshold++
	if ts.samplesBelowThreshold < t.exitStability {
		return
	}
	if _, err := t.store.InsertSnapshot(ts.eventID, model.SnapshotExit, r); err != nil {
		log.Printf("roguehunter: tracker: exit snapshot for event %d: %v", ts.eventID, err)
	}
	if err := t.store.CloseEvent(ts.eventID, r.CapturedAt); err != nil {
		log.Printf("roguehunter: tracker: close event %d: %v", ts.eventID, err)
	}
	t.cooldowns[ts.pid] = r.CapturedAt
	delete(t.tracked, ts.pid)
}

func (t *Tracker) safeTrigger(eventID int64, reason string) {
	if t.onTrigger == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("roguehunter: tracker: forensics callback panicked for event %d: %v", eventID, r)
		}
	}()
	t.onTrigger(eventID, reason)
}
