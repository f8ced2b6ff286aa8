package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/rogue-hunter/roguehunter/model"
)

// Config holds every user-configurable setting for the daemon. Load fills it
// from the JSON file at Path, on top of Default, before it is handed to the
// daemon runtime.
type Config struct {
	DataDir     string        `json:"data_dir"`
	RuntimeDir  string        `json:"runtime_dir"`
	SampleRate  time.Duration `json:"sample_interval"`
	RingSize    int           `json:"ring_size"`
	MaxRogues   int           `json:"max_rogues"`

	Bands     BandsConfig     `json:"bands"`
	Scoring   ScoringConfig   `json:"scoring"`
	Forensics ForensicsConfig `json:"forensics"`
	Storage   StorageConfig   `json:"storage"`
}

// BandsConfig carries the score thresholds and tracker timing parameters
// (§4.2.3, §4.4).
type BandsConfig struct {
	MediumThreshold   int `json:"medium_threshold"`
	ElevatedThreshold int `json:"elevated_threshold"`
	HighThreshold     int `json:"high_threshold"`
	CriticalThreshold int `json:"critical_threshold"`

	TrackingThreshold int `json:"tracking_threshold"`

	ExitStabilitySamples    int `json:"exit_stability_samples"`
	EventCooldownSeconds    int `json:"event_cooldown_seconds"`
	MediumCheckpointSamples int `json:"medium_checkpoint_samples"`
	ElevatedCheckpointSamples int `json:"elevated_checkpoint_samples"`

	ForensicsBand model.Band `json:"forensics_band"`
}

// Classify returns the band realized by score under the configured
// thresholds: the greatest threshold not exceeded by score, or BandLow if
// score is below MediumThreshold.
func (b BandsConfig) Classify(score int) model.Band {
	switch {
	case score >= b.CriticalThreshold:
		return model.BandCritical
	case score >= b.HighThreshold:
		return model.BandHigh
	case score >= b.ElevatedThreshold:
		return model.BandElevated
	case score >= b.MediumThreshold:
		return model.BandMedium
	default:
		return model.BandLow
	}
}

// GetThreshold returns the score threshold at which the given band begins.
// BandLow has no floor other than zero.
func (b BandsConfig) GetThreshold(band model.Band) int {
	switch band {
	case model.BandCritical:
		return b.CriticalThreshold
	case model.BandHigh:
		return b.HighThreshold
	case model.BandElevated:
		return b.ElevatedThreshold
	case model.BandMedium:
		return b.MediumThreshold
	default:
		return 0
	}
}

// ScoringConfig carries the per-metric normalization maxima and state
// multipliers used by the scorer (§4.2.1-§4.2.3).
type ScoringConfig struct {
	PageInsRateMax        float64 `json:"pageins_rate_max"`
	DiskIORateMax         float64 `json:"disk_io_rate_max"`
	FaultsRateMax         float64 `json:"faults_rate_max"`
	GPUTimeRateMax        float64 `json:"gpu_time_rate_max"`
	RunnableRateMax       float64 `json:"runnable_rate_max"`
	ContextSwitchRateMax  float64 `json:"context_switch_rate_max"`
	QoSInteractiveRateMax float64 `json:"qos_interactive_rate_max"`
	MemMax                float64 `json:"mem_max"`
	WakeupsRateMax        float64 `json:"wakeups_rate_max"`
	SyscallsRateMax       float64 `json:"syscalls_rate_max"`
	MachMessagesRateMax   float64 `json:"mach_messages_rate_max"`
	ZombieMax             float64 `json:"zombie_max"`
	IPCMin                float64 `json:"ipc_min"`
	ThreadsMax            float64 `json:"threads_max"`

	// StateMultipliers overrides the default state-multiplier table
	// (§4.2.3). Missing entries fall back to the compiled default.
	StateMultipliers map[model.ProcessState]float64 `json:"state_multipliers"`
}

// ForensicsConfig carries the forensics pipeline's timing and external-tool
// configuration (§4.5).
type ForensicsConfig struct {
	DebounceSeconds float64 `json:"debounce_seconds"`
	LogSeconds      int     `json:"log_seconds"`

	TraceSaveBin   string `json:"trace_save_bin"`
	TraceDecodeBin string `json:"trace_decode_bin"`
	LogQueryBin    string `json:"log_query_bin"`
	SudoBin        string `json:"sudo_bin"`
}

// StorageConfig carries retention policy for the embedded database (§4.6).
type StorageConfig struct {
	EventsRetentionDays       int     `json:"events_retention_days"`
	MachineSnapshotMaxAgeHours float64 `json:"machine_snapshot_max_age_hours"`
	PruneIntervalHours        float64 `json:"prune_interval_hours"`
}

// Default returns a config with sensible, production-ready defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "rogue-hunter")
	return Config{
		DataDir:    dataDir,
		RuntimeDir: filepath.Join(dataDir, "runtime"),
		SampleRate: 333 * time.Millisecond,
		RingSize:   60,
		MaxRogues:  20,
		Bands: BandsConfig{
			MediumThreshold:           30,
			ElevatedThreshold:         45,
			HighThreshold:             60,
			CriticalThreshold:         80,
			TrackingThreshold:         30,
			ExitStabilitySamples:      3,
			EventCooldownSeconds:      30,
			MediumCheckpointSamples:   10,
			ElevatedCheckpointSamples: 3,
			ForensicsBand:             model.BandCritical,
		},
		Scoring: ScoringConfig{
			PageInsRateMax:        1000,
			DiskIORateMax:         50 * 1024 * 1024,
			FaultsRateMax:         5000,
			GPUTimeRateMax:        1000,
			RunnableRateMax:       1000,
			ContextSwitchRateMax:  10000,
			QoSInteractiveRateMax: 1000,
			MemMax:                8 * 1024 * 1024 * 1024,
			WakeupsRateMax:        1000,
			SyscallsRateMax:       20000,
			MachMessagesRateMax:   10000,
			ZombieMax:             5,
			IPCMin:                0.5,
			ThreadsMax:            64,
			StateMultipliers: map[model.ProcessState]float64{
				model.StateRunning:  1.0,
				model.StateStuck:    1.0,
				model.StateSleeping: 0.75,
				model.StateIdle:     0.3,
				model.StateStopped:  0.2,
				model.StateZombie:   0.0,
			},
		},
		Forensics: ForensicsConfig{
			DebounceSeconds: 120,
			LogSeconds:      60,
			TraceSaveBin:    "/usr/bin/tailspin",
			TraceDecodeBin:  "/usr/sbin/spindump",
			LogQueryBin:     "/usr/bin/log",
			SudoBin:         "/usr/bin/sudo",
		},
		Storage: StorageConfig{
			EventsRetentionDays:        90,
			MachineSnapshotMaxAgeHours: 12,
			PruneIntervalHours:         6,
		},
	}
}

// Path returns ~/.config/rogue-hunter/config.json (or XDG_CONFIG_HOME).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // refuse to fall back to /tmp (security risk)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "rogue-hunter", "config.json")
}

// Load loads config from disk; returns defaults on error.
func Load() Config {
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("roguehunter: warning: config parse error: %v", err)
	}
	return cfg
}

// Save writes the config to disk.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
