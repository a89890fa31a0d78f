package domain

import "testing"

func TestRunOptions_WithDefaults(t *testing.T) {
	def := RunOptions{Concurrency: IntPtr(8), Retries: IntPtr(3)}

	tests := []struct {
		name        string
		opts        RunOptions
		concurrency int
		retries     int
	}{
		{name: "empty takes defaults", opts: RunOptions{}, concurrency: 8, retries: 3},
		{name: "explicit wins", opts: RunOptions{Concurrency: IntPtr(1)}, concurrency: 1, retries: 3},
		{name: "explicit zero wins", opts: RunOptions{Retries: IntPtr(0)}, concurrency: 8, retries: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.WithDefaults(def)
			if *got.Concurrency != tt.concurrency || *got.Retries != tt.retries {
				t.Errorf("expected concurrency=%d retries=%d, got %d/%d",
					tt.concurrency, tt.retries, *got.Concurrency, *got.Retries)
			}
			if got.Fetch != nil || got.TimeoutMs != nil {
				t.Error("fields absent in both should stay nil")
			}
		})
	}
}

func TestRun_Lifecycle(t *testing.T) {
	run := NewRun([]byte(`[]`), RunOptions{})
	if run.Status != RunStatusPending || run.IsFinished() {
		t.Fatalf("new run should be pending, got %s", run.Status)
	}

	run.MarkRunning()
	if run.Status != RunStatusRunning || run.StartedAt == nil {
		t.Fatal("run should be running with start time")
	}

	run.MarkSucceeded([]byte(`[]`), 2, 1)
	if !run.IsFinished() || run.Duration() < 0 || run.StepCount != 2 {
		t.Errorf("unexpected finished run %+v", run)
	}
}

func TestParseRunStatus(t *testing.T) {
	if s, ok := ParseRunStatus("FAILED"); !ok || s != RunStatusFailed {
		t.Error("FAILED should parse")
	}
	if _, ok := ParseRunStatus("CANCELLED"); ok {
		t.Error("unknown status should not parse")
	}
}
