package sequence

import (
	"errors"
	"testing"
)

func TestAllocatorIsStrictlyIncreasing(t *testing.T) {
	a, err := New(0)
	if err != nil {
		t.Fatal(err.Error())
	}

	var prev int64
	for i := 0; i < 100; i++ {
		id := a.Next()
		if id <= prev {
			t.Fatalf("id %d is not greater than previous %d", id, prev)
		}
		prev = id
	}
	if a.Last() != 100 {
		t.Errorf("expected last 100, got %d", a.Last())
	}
}

func TestAllocatorContinuesAfterRestart(t *testing.T) {
	first, err := New(0)
	if err != nil {
		t.Fatal(err.Error())
	}
	for i := 0; i < 8; i++ {
		first.Next()
	}
	persisted := first.Last()

	resumed, err := New(persisted)
	if err != nil {
		t.Fatal(err.Error())
	}
	if id := resumed.Next(); id != 9 {
		t.Errorf("expected 9 after resume, got %d", id)
	}
}

func TestAllocatorRejectsNegative(t *testing.T) {
	if _, err := New(-1); !errors.Is(err, ErrNegativeValue) {
		t.Errorf("expected ErrNegativeValue, got %v", err)
	}
}
