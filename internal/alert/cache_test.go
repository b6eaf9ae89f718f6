package alert

import (
	"testing"

	"whale-footprint-bot/internal/model"
)

func TestCache_ShouldAlertOnce(t *testing.T) {
	c, err := New(2000, 1000)
	if err != nil {
		t.Fatal(err)
	}

	id := model.SignalIdentity{Symbol: "BTCUSDT", CandleTime: 1000}
	if !c.ShouldAlert(id) {
		t.Fatal("first ShouldAlert should return true")
	}
	if c.ShouldAlert(id) {
		t.Fatal("repeat ShouldAlert should return false")
	}
	if !c.Contains(id) {
		t.Fatal("expected id to be remembered")
	}

	other := model.SignalIdentity{Symbol: "ETHUSDT", CandleTime: 1000}
	if !c.ShouldAlert(other) {
		t.Fatal("different symbol at the same time is a new signal")
	}
}

func TestCache_PruneToTarget(t *testing.T) {
	c, err := New(10, 4)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		c.ShouldAlert(model.SignalIdentity{Symbol: "BTCUSDT", CandleTime: int64(i)})
	}
	if c.Len() != 10 {
		t.Fatalf("expected len=10 before overflow, got %d", c.Len())
	}

	// 11th insert exceeds capacity
	c.ShouldAlert(model.SignalIdentity{Symbol: "BTCUSDT", CandleTime: 10})
	if c.Len() > 4 {
		t.Fatalf("expected len<=4 after prune, got %d", c.Len())
	}
	if c.Evicted() != 7 {
		t.Errorf("expected 7 evictions, got %d", c.Evicted())
	}

	// newest survive, oldest are gone
	for i := 7; i <= 10; i++ {
		if !c.Contains(model.SignalIdentity{Symbol: "BTCUSDT", CandleTime: int64(i)}) {
			t.Errorf("expected recent id %d to survive", i)
		}
	}
	for i := 0; i < 7; i++ {
		if c.Contains(model.SignalIdentity{Symbol: "BTCUSDT", CandleTime: int64(i)}) {
			t.Errorf("expected old id %d to be evicted", i)
		}
	}
}

func TestCache_WraparoundKeepsOrder(t *testing.T) {
	c, err := New(5, 2)
	if err != nil {
		t.Fatal(err)
	}

	for round := 0; round < 50; round++ {
		c.ShouldAlert(model.SignalIdentity{Symbol: "X", CandleTime: int64(round)})
		if c.Len() > 5 {
			t.Fatalf("round %d: len=%d exceeds capacity", round, c.Len())
		}
	}
	// the last inserted id is always retained
	if !c.Contains(model.SignalIdentity{Symbol: "X", CandleTime: 49}) {
		t.Fatal("latest id evicted")
	}
	// evicted ids can alert again
	if !c.ShouldAlert(model.SignalIdentity{Symbol: "X", CandleTime: 0}) {
		t.Fatal("evicted id should be alertable again")
	}
}

func TestNew_RejectsBadBounds(t *testing.T) {
	cases := []struct{ capacity, target int }{
		{0, 0}, {10, 0}, {10, 10}, {5, 8},
	}
	for _, tc := range cases {
		if _, err := New(tc.capacity, tc.target); err == nil {
			t.Errorf("New(%d, %d) should fail", tc.capacity, tc.target)
		}
	}
}
