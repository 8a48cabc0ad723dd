package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerStatus describes one armed trigger of a job.
type TriggerStatus struct {
	Spec string    `json:"spec"`
	Next time.Time `json:"next,omitempty"`
	Prev time.Time `json:"prev,omitempty"`
}

// JobStatus is the status-query view of one job descriptor.
type JobStatus struct {
	Name        string          `json:"name"`
	Triggers    []TriggerStatus `json:"triggers"`
	State       string          `json:"state"` // "idle" | "running"
	LastRun     time.Time       `json:"last_run,omitempty"`
	LastOutcome Outcome         `json:"last_outcome"`
	LastDetail  string          `json:"last_detail,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
	Skips       int             `json:"skips,omitempty"`
	LastSkip    time.Time       `json:"last_skip,omitempty"`
}

type Snapshot struct {
	Running  bool        `json:"running"`
	Timezone string      `json:"timezone"`
	Jobs     []JobStatus `json:"jobs"`
}

// Snapshot returns the status of every registered job plus the scheduler
// lifecycle state. It only takes each job's own mutex briefly; a status query
// never blocks a running job body.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.started
	c := s.c
	order := append([]string(nil), s.order...)
	jobs := make([]*job, 0, len(order))
	for _, name := range order {
		jobs = append(jobs, s.jobs[name])
	}
	loc := s.loc
	s.mu.Unlock()

	snap := Snapshot{Running: running, Timezone: loc.String()}
	for _, j := range jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:        j.name,
			State:       "idle",
			LastRun:     j.lastStart,
			LastOutcome: j.lastOutcome,
			LastDetail:  j.lastDetail,
			LastError:   j.lastError,
			TriggeredBy: j.lastBy,
			Skips:       j.skips,
			LastSkip:    j.lastSkip,
		}
		if j.running {
			st.State = "running"
		}
		triggers := append([]Trigger(nil), j.triggers...)
		entries := append([]cron.EntryID(nil), j.entries...)
		j.mu.Unlock()

		for i, tr := range triggers {
			ts := TriggerStatus{Spec: tr.String()}
			if c != nil && i < len(entries) {
				e := c.Entry(entries[i])
				ts.Next = e.Next
				ts.Prev = e.Prev
			}
			st.Triggers = append(st.Triggers, ts)
		}
		snap.Jobs = append(snap.Jobs, st)
	}
	return snap
}
