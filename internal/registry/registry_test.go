package registry

import "testing"

type fakeCloser struct{ closed bool }

func (f *fakeCloser) Close() { f.closed = true }

func TestRegisterRejectsOverCapacity(t *testing.T) {
	r := New(1)
	if err := r.Register("a", &fakeCloser{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("b", &fakeCloser{}); err != ErrAtCapacity {
		t.Fatalf("got %v, want ErrAtCapacity", err)
	}
}

func TestCloseRemovesAndCloses(t *testing.T) {
	r := New(0)
	c := &fakeCloser{}
	r.Register("a", c)
	r.Close("a")
	if !c.closed {
		t.Fatal("expected entry to be closed")
	}
	if r.Len() != 0 {
		t.Fatalf("got len %d, want 0", r.Len())
	}
}

func TestCloseAllSweepsEverything(t *testing.T) {
	r := New(0)
	c1, c2 := &fakeCloser{}, &fakeCloser{}
	r.Register("a", c1)
	r.Register("b", c2)
	r.CloseAll()
	if !c1.closed || !c2.closed {
		t.Fatal("expected both entries closed")
	}
	if r.Len() != 0 {
		t.Fatalf("got len %d, want 0", r.Len())
	}
}
