package ledger

import (
	"testing"
	"time"
)

func TestEffectiveTime(t *testing.T) {
	date := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, time.February, 3, 9, 15, 0, 0, time.UTC)

	stamped := Entry{Date: date, CreatedAt: created}
	if !stamped.EffectiveTime().Equal(created) {
		t.Fatalf("stamped entry should order by CreatedAt, got %v", stamped.EffectiveTime())
	}

	unstamped := Entry{Date: date}
	if !unstamped.EffectiveTime().Equal(date) {
		t.Fatalf("unstamped entry should fall back to its date, got %v", unstamped.EffectiveTime())
	}
}

func TestAmountValue(t *testing.T) {
	if got := (Entry{Amount: "40"}).AmountValue(); got != 40 {
		t.Fatalf("AmountValue = %v", got)
	}
	if got := (Entry{Amount: "n/a"}).AmountValue(); got != 0 {
		t.Fatalf("malformed amount must coerce to 0, got %v", got)
	}
}
