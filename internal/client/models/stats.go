package models

// SyncStats is a snapshot of the scheduler counters.
type SyncStats struct {
	Checks  uint64 `json:"checks"`
	Syncs   uint64 `json:"syncs"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
	Scans   uint64 `json:"scans"`
}

// SkipRate is Skipped/Checks, or 0 before the first check.
func (s SyncStats) SkipRate() float64 {
	if s.Checks == 0 {
		return 0
	}
	return float64(s.Skipped) / float64(s.Checks)
}
