// Package daemon wires the sampler, ring, tracker, forensics pipeline, and
// push server into the fixed-period runtime loop (§5) and owns its
// lifecycle: single-instance guard, signal-driven shutdown, periodic
// maintenance.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rogue-hunter/roguehunter/collector"
	"github.com/rogue-hunter/roguehunter/config"
	"github.com/rogue-hunter/roguehunter/engine"
	"github.com/rogue-hunter/roguehunter/forensics"
	"github.com/rogue-hunter/roguehunter/model"
	"github.com/rogue-hunter/roguehunter/osadapter"
	"github.com/rogue-hunter/roguehunter/server"
	"github.com/rogue-hunter/roguehunter/storage"
)

const (
	pidFileName           = "daemon.pid"
	machineSnapshotPeriod = 5 * time.Minute
	heartbeatPeriod       = 30 * time.Second
)

// Daemon owns every long-lived component of the runtime loop.
type Daemon struct {
	cfg     config.Config
	adapter osadapter.Adapter
	db      *storage.DB
	sampler *collector.Sampler
	ring    *engine.Ring
	scorer  *engine.Scorer
	tracker *engine.Tracker
	srv     *server.Server
	pipeline *forensics.Pipeline

	pidPath string

	lastMachineSnapshot time.Time
	lastPrune           time.Time
	lastHeartbeat       time.Time
}

// New builds a Daemon from cfg, opening the database and wiring every
// component. It does not start the run loop or acquire the PID file.
func New(cfg config.Config) (*Daemon, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("daemon: create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.RuntimeDir, 0o700); err != nil {
		return nil, fmt.Errorf("daemon: create runtime dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "roguehunter.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: open database: %w", err)
	}

	adapter := osadapter.NewGopsutilAdapter()
	sampler := collector.NewSampler(adapter)
	ring := engine.NewRing(cfg.RingSize)
	scorer := engine.NewScorer(cfg.Scoring, cfg.Bands, cfg.MaxRogues)
	srv := server.New(filepath.Join(cfg.DataDir, "roguehunter.sock"), ring)

	traceTool := osadapter.NewSubprocessTraceTool(cfg.Forensics.SudoBin, cfg.Forensics.TraceSaveBin, cfg.Forensics.TraceDecodeBin)
	logTool := osadapter.NewSubprocessLogTool(cfg.Forensics.LogQueryBin)
	pipeline := forensics.NewPipeline(db, traceTool, logTool, cfg.RuntimeDir, cfg.Forensics.LogSeconds, "",
		time.Duration(cfg.Forensics.DebounceSeconds*float64(time.Second)))

	d := &Daemon{
		cfg:      cfg,
		adapter:  adapter,
		db:       db,
		sampler:  sampler,
		ring:     ring,
		scorer:   scorer,
		srv:      srv,
		pipeline: pipeline,
		pidPath:  filepath.Join(cfg.DataDir, pidFileName),
	}

	cooldown := time.Duration(cfg.Bands.EventCooldownSeconds) * time.Second
	tracker, err := engine.NewTracker(db, cfg.Bands, adapter.BootTime(), cooldown, cfg.Bands.ExitStabilitySamples, d.onForensicsTrigger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("daemon: init tracker: %w", err)
	}
	d.tracker = tracker

	return d, nil
}

// onForensicsTrigger fires the forensics pipeline on its own goroutine so
// the sampling loop never blocks on trace capture (§4.4, §5).
func (d *Daemon) onForensicsTrigger(eventID int64, reason string) {
	frozen := d.ring.Freeze()
	go d.pipeline.Capture(context.Background(), eventID, reason, frozen)
}

// Run acquires the single-instance PID file, starts the push server, and
// runs the fixed-period sampling loop until a shutdown signal arrives or
// ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquirePIDFile(); err != nil {
		return err
	}
	defer os.Remove(d.pidPath)

	d.adjustPriority()

	if err := d.srv.Start(); err != nil {
		return fmt.Errorf("daemon: start push server: %w", err)
	}
	defer d.srv.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(d.cfg.SampleRate)
	defer ticker.Stop()

	log.Printf("roguehunter: daemon started (pid=%d, interval=%s, datadir=%s)", os.Getpid(), d.cfg.SampleRate, d.cfg.DataDir)

	for {
		select {
		case <-ctx.Done():
			log.Printf("roguehunter: daemon shutting down: %v", ctx.Err())
			return nil
		case sig := <-sigCh:
			log.Printf("roguehunter: daemon received %s, shutting down", sig)
			return nil
		case now := <-ticker.C:
			d.tick(ctx, now)
		}
	}
}

func (d *Daemon) tick(ctx context.Context, now time.Time) {
	result, err := d.sampler.Collect(ctx)
	if err != nil {
		log.Printf("roguehunter: sampler: collect: %v", err)
		return
	}

	scored := d.scorer.Score(result.Records)
	rogues := d.scorer.Select(scored)

	sample := model.SampleSet{
		Timestamp:    now,
		ElapsedMs:    result.ElapsedMs,
		ProcessCount: result.ProcessCount,
		MaxScore:     engine.MaxScore(rogues),
		Rogues:       rogues,
		SampleCount:  min(d.ring.Len()+1, max(d.cfg.RingSize, 1)),
	}
	d.ring.Push(sample)
	d.tracker.Process(rogues, capturedAtSeconds(now))
	d.srv.Broadcast(sample)

	d.maybeHeartbeat(sample)
	d.maybeCaptureMachineSnapshot(result)
	d.maybePrune()
}

func (d *Daemon) maybeHeartbeat(sample model.SampleSet) {
	if time.Since(d.lastHeartbeat) < heartbeatPeriod {
		return
	}
	d.lastHeartbeat = time.Now()
	log.Printf("roguehunter: heartbeat: processes=%d max_score=%d ring=%d/%d db=%s",
		sample.ProcessCount, sample.MaxScore, d.ring.Len(), d.cfg.RingSize, humanize.Bytes(uint64(d.db.Size())))
}

func (d *Daemon) maybeCaptureMachineSnapshot(result collector.Result) {
	if time.Since(d.lastMachineSnapshot) < machineSnapshotPeriod {
		return
	}
	d.lastMachineSnapshot = time.Now()

	var totalCPU float64
	var totalMem uint64
	procs := make([]model.MachineSnapshotProcess, 0, len(result.Records))
	for _, r := range result.Records {
		totalCPU += r.CPU
		totalMem += r.MemFootprint
		procs = append(procs, model.MachineSnapshotProcess{
			PID:      r.PID,
			Command:  r.Command,
			CPUPct:   r.CPU,
			MemBytes: r.MemFootprint,
			State:    r.State,
		})
	}
	snap := model.MachineSnapshot{
		CapturedAt:    nowSeconds(),
		ProcessCount:  result.ProcessCount,
		TotalCPUPct:   totalCPU,
		TotalMemBytes: totalMem,
	}
	if err := d.db.InsertMachineSnapshot(snap, procs); err != nil {
		log.Printf("roguehunter: machine snapshot: %v", err)
	}
}

func (d *Daemon) maybePrune() {
	interval := time.Duration(d.cfg.Storage.PruneIntervalHours * float64(time.Hour))
	if interval <= 0 || time.Since(d.lastPrune) < interval {
		return
	}
	d.lastPrune = time.Now()
	if err := d.db.Prune(d.cfg.Storage.EventsRetentionDays); err != nil {
		log.Printf("roguehunter: prune events: %v", err)
	}
	if err := d.db.PruneMachineSnapshots(d.cfg.Storage.MachineSnapshotMaxAgeHours); err != nil {
		log.Printf("roguehunter: prune machine snapshots: %v", err)
	}
}

// adjustPriority raises the daemon's own scheduling priority so its
// sampling loop is not coalesced or demoted under the load spikes it
// exists to diagnose. Best-effort: failure is logged, never fatal.
func (d *Daemon) adjustPriority() {
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, 0, -10); err != nil {
		log.Printf("roguehunter: could not raise scheduling priority: %v", err)
	}
}

// acquirePIDFile takes the single-instance lock. A stale PID file (process
// no longer running) is removed and replaced; a live one is a fatal error.
func (d *Daemon) acquirePIDFile() error {
	if data, err := os.ReadFile(d.pidPath); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && pid > 0 {
			if processAlive(pid) {
				return fmt.Errorf("daemon: already running (pid %d, pidfile %s)", pid, d.pidPath)
			}
			log.Printf("roguehunter: removing stale pid file for dead pid %d", pid)
		}
	}
	return os.WriteFile(d.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Close releases the database connection. Call after Run returns.
func (d *Daemon) Close() error {
	return d.db.Close()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// capturedAtSeconds converts t into the same captured-at representation the
// sampler stamps on every ProcessScore, so the tracker's absent-PID closure
// path anchors to the tick's own virtual time rather than wall-clock drift.
func capturedAtSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
