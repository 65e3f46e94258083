package scheduler

import (
	"context"
	"testing"
	"time"
)

func noJobs(ctx context.Context) ([]Job, error) { return nil, nil }

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ScheduleTime
		wantErr bool
	}{
		{"06:30", ScheduleTime{6, 30}, false},
		{"0:05", ScheduleTime{0, 5}, false},
		{"23:59", ScheduleTime{23, 59}, false},
		{"24:00", ScheduleTime{}, true},
		{"12:60", ScheduleTime{}, true},
		{"noon", ScheduleTime{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScheduleTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{ScheduleTimes: []string{"06:00"}}); err == nil {
		t.Error("expected error without job provider")
	}
	if _, err := New(Config{JobProvider: noJobs}); err == nil {
		t.Error("expected error without schedule times")
	}
	if _, err := New(Config{ScheduleTimes: []string{"6am"}, JobProvider: noJobs}); err == nil {
		t.Error("expected error for bad schedule time")
	}
}

func TestScheduler_ShouldRunOncePerSlot(t *testing.T) {
	s, err := New(Config{ScheduleTimes: []string{"06:00", "18:30"}, WorkerCount: 1, JobProvider: noJobs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	at := func(h, m int) time.Time { return time.Date(2024, 3, 10, h, m, 5, 0, time.UTC) }

	if !s.shouldRun(at(6, 0)) {
		t.Error("expected run at 06:00")
	}
	if s.shouldRun(at(6, 0)) {
		t.Error("second tick in the same minute must not run again")
	}
	if s.shouldRun(at(6, 1)) {
		t.Error("06:01 is not scheduled")
	}
	if !s.shouldRun(at(18, 30)) {
		t.Error("expected run at 18:30")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	s, err := New(Config{ScheduleTimes: []string{"18:30", "06:00"}, WorkerCount: 1, JobProvider: noJobs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before first", time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)},
		{"between", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)},
		{"after last", time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.now = func() time.Time { return tt.now }
			if got := s.NextRun(); !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_TriggerNowRunsProviderJobs(t *testing.T) {
	done := make(chan string, 2)
	provider := func(ctx context.Context) ([]Job, error) {
		return []Job{
			&funcJob{key: "item-1", fn: func(ctx context.Context) error { done <- "item-1"; return nil }},
			&funcJob{key: "item-2", fn: func(ctx context.Context) error { done <- "item-2"; return nil }},
		}, nil
	}

	s, err := New(Config{ScheduleTimes: []string{"03:00"}, WorkerCount: 2, QueueSize: 4, JobProvider: provider})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Shutdown(time.Second)

	if n := s.TriggerNow(); n != 2 {
		t.Fatalf("TriggerNow queued %d jobs, want 2", n)
	}

	seen := map[string]bool{}
	for range 2 {
		select {
		case key := <-done:
			seen[key] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	if !seen["item-1"] || !seen["item-2"] {
		t.Errorf("jobs run = %v", seen)
	}
}
