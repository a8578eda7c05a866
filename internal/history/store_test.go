package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.Record(Dispatch{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Address:   0x180,
			Data:      "deadbeef",
			Bus:       0,
			Mode:      "production",
			Outcome:   "sent",
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(got))
	}
	// Most recent first.
	if !got[0].Timestamp.After(got[2].Timestamp) {
		t.Errorf("expected descending order, got %v then %v", got[0].Timestamp, got[2].Timestamp)
	}
	if got[0].Address != 0x180 || got[0].Data != "deadbeef" || got[0].Mode != "production" {
		t.Errorf("unexpected dispatch: %+v", got[0])
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.Record(Dispatch{Address: 0x100, Outcome: "sent"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 dispatches, got %d", len(got))
	}
}

func TestRecordFillsZeroTimestamp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Record(Dispatch{Address: 0x100, Outcome: "sent"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Recent(1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestSummarize(t *testing.T) {
	s := newTestStore(t)

	counts := map[uint32]int{0x180: 4, 0x200: 2, 0x555: 1}
	for addr, n := range counts {
		for i := 0; i < n; i++ {
			outcome := "sent"
			if i == 0 {
				outcome = "rejected"
			}
			if err := s.Record(Dispatch{Address: addr, Outcome: outcome}); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
	}

	sum, err := s.Summarize(2)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 7 {
		t.Errorf("expected total 7, got %d", sum.Total)
	}
	if sum.ByOutcome["sent"] != 4 || sum.ByOutcome["rejected"] != 3 {
		t.Errorf("unexpected outcome counts: %v", sum.ByOutcome)
	}
	if len(sum.TopAddresses) != 2 {
		t.Fatalf("expected 2 top addresses, got %d", len(sum.TopAddresses))
	}
	if sum.TopAddresses[0].Address != 0x180 || sum.TopAddresses[0].Count != 4 {
		t.Errorf("unexpected top address: %+v", sum.TopAddresses[0])
	}
	if sum.TopAddresses[1].Address != 0x200 || sum.TopAddresses[1].Count != 2 {
		t.Errorf("unexpected second address: %+v", sum.TopAddresses[1])
	}
}

func TestSummarizeEmptyStore(t *testing.T) {
	s := newTestStore(t)
	sum, err := s.Summarize(5)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 0 || len(sum.TopAddresses) != 0 {
		t.Errorf("expected empty summary, got %+v", sum)
	}
}
