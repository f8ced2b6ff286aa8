package storage

import "fmt"

// Prune deletes closed process_events older than eventsDays days; cascades
// remove their snapshots, forensic captures, and trace/log rows. Open
// events are never pruned regardless of age (§4.6).
func (db *DB) Prune(eventsDays int) error {
	if eventsDays < 1 {
		return fmt.Errorf("storage: prune: events_days must be >= 1, got %d", eventsDays)
	}
	cutoff := nowSeconds() - float64(eventsDays)*86400
	_, err := db.conn.Exec(
		`DELETE FROM process_events WHERE exit_time IS NOT NULL AND exit_time < ?`,
		cutoff,
	)
	if err != nil {
		return fmt.Errorf("storage: prune events: %w", err)
	}
	return nil
}

// PruneMachineSnapshots deletes machine_snapshots older than maxAgeHours
// hours; cascades remove their per-process rows (§3.1A).
func (db *DB) PruneMachineSnapshots(maxAgeHours float64) error {
	if maxAgeHours <= 0 {
		return fmt.Errorf("storage: prune machine snapshots: max_age_hours must be > 0, got %v", maxAgeHours)
	}
	cutoff := nowSeconds() - maxAgeHours*3600
	_, err := db.conn.Exec(`DELETE FROM machine_snapshots WHERE captured_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("storage: prune machine snapshots: %w", err)
	}
	return nil
}
