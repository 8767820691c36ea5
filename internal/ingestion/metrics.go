package ingestion

import "sync/atomic"

// Metrics is the process-wide running success-rate counter the RunReport
// feeds into (spec §4.2: "used to update a running success-rate metric
// exposed to health checks"). It is the one piece of in-process mutable
// global state the spec allows outside the scheduler handle (§5).
type Metrics struct {
	runs      atomic.Int64
	runsOK    atomic.Int64
	itemsSeen atomic.Int64
	itemsErr  atomic.Int64
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) record(report *RunReport, runFailed bool) {
	m.runs.Add(1)
	if !runFailed {
		m.runsOK.Add(1)
	}
	m.itemsSeen.Add(int64(report.Fetched))
	m.itemsErr.Add(int64(len(report.Errors)))
}

// Snapshot reports the current success rates for health checks.
type Snapshot struct {
	Runs           int64
	RunSuccessRate float64
	ItemsSeen      int64
	ItemErrorRate  float64
}

func (m *Metrics) Snapshot() Snapshot {
	runs := m.runs.Load()
	items := m.itemsSeen.Load()
	s := Snapshot{Runs: runs, ItemsSeen: items}
	if runs > 0 {
		s.RunSuccessRate = float64(m.runsOK.Load()) / float64(runs)
	}
	if items > 0 {
		s.ItemErrorRate = float64(m.itemsErr.Load()) / float64(items)
	}
	return s
}
