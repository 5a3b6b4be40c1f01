package chunk

import "testing"

func TestNewFromBytesRoundTrip(t *testing.T) {
	data := []byte("hello, worldlink")
	c := NewFromBytes(data)
	defer c.Release()

	if string(c.Bytes()) != string(data) {
		t.Fatalf("got %q, want %q", c.Bytes(), data)
	}
	if !c.Sealed() {
		t.Fatalf("NewFromBytes should seal")
	}
}

func TestRetainReleaseLifecycle(t *testing.T) {
	c := New(64)
	c.Retain()
	if c.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", c.RefCount())
	}
	c.Release()
	if c.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", c.RefCount())
	}
	c.Release()
	if c.RefCount() != 0 {
		t.Fatalf("expected refcount 0, got %d", c.RefCount())
	}
}

func TestAdvanceIntoUnwritten(t *testing.T) {
	c := New(0)
	defer c.Release()
	space := c.Unwritten()
	copy(space, []byte("abcd"))
	c.Advance(4)
	if c.Len() != 4 {
		t.Fatalf("expected length 4, got %d", c.Len())
	}
	if string(c.Bytes()) != "abcd" {
		t.Fatalf("unexpected bytes: %q", c.Bytes())
	}
}

func TestAdvancePastCapacityPanics(t *testing.T) {
	c := New(4)
	defer c.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on overflow")
		}
	}()
	c.Advance(uint32(len(c.buf)) + 1)
}

func TestReleaseImbalancePanics(t *testing.T) {
	c := New(4)
	c.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release")
		}
	}()
	c.Release()
}
