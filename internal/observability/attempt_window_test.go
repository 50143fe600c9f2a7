package observability

import "testing"

func TestAttemptWindowSnapshot(t *testing.T) {
	w := NewAttemptWindow(8)
	w.Observe("ok", 100)
	w.Observe("ok", 200)
	w.Observe("transient", 50)

	snap := w.Snapshot()
	if snap.Total != 3 {
		t.Fatalf("Total = %d, want 3", snap.Total)
	}
	if snap.SuccessRate != 0.67 {
		t.Fatalf("SuccessRate = %v, want 0.67", snap.SuccessRate)
	}
	if len(snap.Outcomes) != 2 {
		t.Fatalf("Outcomes = %d, want 2", len(snap.Outcomes))
	}

	var ok *AttemptStats
	for i := range snap.Outcomes {
		if snap.Outcomes[i].Outcome == "ok" {
			ok = &snap.Outcomes[i]
		}
	}
	if ok == nil {
		t.Fatalf("no ok outcome in snapshot: %+v", snap.Outcomes)
	}
	if ok.Samples != 2 || ok.LastMS != 200 || ok.AvgMS != 150 {
		t.Fatalf("unexpected ok stats: %+v", ok)
	}
}

func TestAttemptWindowRingOverwrite(t *testing.T) {
	w := NewAttemptWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe("ok", float64(i))
	}
	snap := w.Snapshot()
	if snap.Total != 4 {
		t.Fatalf("Total = %d, want window-capped 4", snap.Total)
	}
	if snap.Outcomes[0].LastMS != 9 {
		t.Fatalf("LastMS = %v, want 9", snap.Outcomes[0].LastMS)
	}
}

func TestAttemptWindowIgnoresInvalid(t *testing.T) {
	w := NewAttemptWindow(4)
	w.Observe("", 10)
	w.Observe("ok", -1)
	if snap := w.Snapshot(); snap.Total != 0 {
		t.Fatalf("Total = %d, want 0", snap.Total)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAttempt("ok", 0)
	if snap := m.SnapshotAttempts(); snap.Total != 0 {
		t.Fatalf("nil metrics snapshot = %+v", snap)
	}
}
