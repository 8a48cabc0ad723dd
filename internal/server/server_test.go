package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taskping/internal/scheduler"
	"taskping/pkg/logx"
)

type fakeScheduler struct {
	snap       scheduler.Snapshot
	triggerErr error
	triggered  []string
}

func (f *fakeScheduler) Snapshot() scheduler.Snapshot { return f.snap }

func (f *fakeScheduler) TriggerNow(name string) error {
	f.triggered = append(f.triggered, name)
	return f.triggerErr
}

func testHandler(sch Scheduler) http.Handler {
	s := &Server{log: logx.Nop(), sch: sch}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/scheduler/status", s.handleStatus)
	r.Post("/scheduler/jobs/{name}/trigger", s.handleTrigger)
	return r
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := testHandler(&fakeScheduler{snap: scheduler.Snapshot{Running: true}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status    string `json:"status"`
		Scheduler bool   `json:"scheduler"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || !body.Scheduler {
		t.Fatalf("body = %+v", body)
	}
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()
	h := testHandler(&fakeScheduler{snap: scheduler.Snapshot{
		Running:  true,
		Timezone: "UTC",
		Jobs: []scheduler.JobStatus{{
			Name:        "due_today",
			State:       "idle",
			LastOutcome: scheduler.OutcomeSuccess,
			LastRun:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		}},
	}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduler/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap scheduler.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Jobs) != 1 || snap.Jobs[0].Name != "due_today" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Jobs[0].LastOutcome != scheduler.OutcomeSuccess {
		t.Fatalf("outcome = %s", snap.Jobs[0].LastOutcome)
	}
}

func TestTriggerResponses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"unknown job", scheduler.ErrUnknownJob, http.StatusNotFound},
		{"already running", scheduler.ErrAlreadyRunning, http.StatusConflict},
		{"not started", scheduler.ErrNotStarted, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := &fakeScheduler{triggerErr: tt.err}
			h := testHandler(fs)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduler/jobs/overdue/trigger", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if len(fs.triggered) != 1 || fs.triggered[0] != "overdue" {
				t.Fatalf("triggered = %v", fs.triggered)
			}
		})
	}
}

func TestTriggerRequiresPost(t *testing.T) {
	t.Parallel()
	h := testHandler(&fakeScheduler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduler/jobs/overdue/trigger", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
