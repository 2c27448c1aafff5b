package pool

import (
	"testing"
	"unsafe"
)

func TestList(t *testing.T) {
	t.Run("PushWithinPartCapacityStaysInOnePart", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		l, err := NewList(p, 4, 4)
		if err != nil {
			t.Fatalf("NewList: %v", err)
		}

		for i := int32(0); i < 4; i++ {
			slot, err := l.Push()
			if err != nil {
				t.Fatalf("Push %d: %v", i, err)
			}
			putInt32(slot, i)
		}

		if parts := l.Parts(); len(parts) != 1 {
			t.Fatalf("len(Parts()) = %d, want 1", len(parts))
		}
	})

	t.Run("PushBeyondCapacityStartsNewPart", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		l, err := NewList(p, 3, 4)
		if err != nil {
			t.Fatalf("NewList: %v", err)
		}

		for i := int32(0); i < 5; i++ {
			slot, err := l.Push()
			if err != nil {
				t.Fatalf("Push %d: %v", i, err)
			}
			putInt32(slot, i)
		}

		parts := l.Parts()
		if len(parts) != 2 {
			t.Fatalf("len(Parts()) = %d, want 2", len(parts))
		}

		if parts[0].Len() != 3 || parts[1].Len() != 2 {
			t.Fatalf("part sizes = %d,%d, want 3,2", parts[0].Len(), parts[1].Len())
		}
	})

	t.Run("ElementPointersSurviveLaterPushes", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		l, err := NewList(p, 2, 4)
		if err != nil {
			t.Fatalf("NewList: %v", err)
		}

		first, err := l.Push()
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		putInt32(first, 42)

		for i := 0; i < 10; i++ {
			if _, err := l.Push(); err != nil {
				t.Fatalf("Push: %v", err)
			}
		}

		if getInt32(first) != 42 {
			t.Fatal("first element's pointer was invalidated by later pushes")
		}
	})

	t.Run("EachVisitsElementsInPushOrder", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		l, err := NewList(p, 2, 4)
		if err != nil {
			t.Fatalf("NewList: %v", err)
		}

		for i := int32(0); i < 5; i++ {
			slot, err := l.Push()
			if err != nil {
				t.Fatalf("Push %d: %v", i, err)
			}
			putInt32(slot, i)
		}

		var got []int32
		l.Each(func(elt unsafe.Pointer) {
			got = append(got, getInt32(elt))
		})

		if len(got) != 5 {
			t.Fatalf("Each visited %d elements, want 5", len(got))
		}

		for i, v := range got {
			if v != int32(i) {
				t.Fatalf("got[%d] = %d, want %d", i, v, i)
			}
		}
	})

	t.Run("RejectsNonPositiveDimensions", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if _, err := NewList(p, 0, 4); err == nil {
			t.Fatal("expected an error for n=0")
		}

		if _, err := NewList(p, 4, 0); err == nil {
			t.Fatal("expected an error for size=0")
		}
	})

	t.Run("PartViewAtPanicsOutOfRange", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		l, err := NewList(p, 2, 4)
		if err != nil {
			t.Fatalf("NewList: %v", err)
		}

		if _, err := l.Push(); err != nil {
			t.Fatalf("Push: %v", err)
		}

		defer func() {
			if recover() == nil {
				t.Fatal("expected PartView.At to panic for an out-of-range index")
			}
		}()

		l.Parts()[0].At(5)
	})
}
