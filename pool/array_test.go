package pool

import (
	"testing"
	"unsafe"
)

func putInt32(ptr unsafe.Pointer, v int32) {
	*(*int32)(ptr) = v
}

func getInt32(ptr unsafe.Pointer) int32 {
	return *(*int32)(ptr)
}

func TestArray(t *testing.T) {
	t.Run("PushGrowsInPlaceWhenUncontested", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		a, err := NewArray(p, 2, 4)
		if err != nil {
			t.Fatalf("NewArray: %v", err)
		}

		before := a.Elems()

		for i := int32(0); i < 4; i++ {
			slot, err := a.Push()
			if err != nil {
				t.Fatalf("Push %d: %v", i, err)
			}
			putInt32(slot, i)
		}

		if a.Len() != 4 {
			t.Fatalf("Len() = %d, want 4", a.Len())
		}

		if a.Elems() != before {
			t.Fatal("expected Push to grow the storage in place, without relocating it")
		}

		for i := int32(0); i < 4; i++ {
			got := getInt32(unsafe.Add(a.Elems(), uintptr(i)*4))
			if got != i {
				t.Fatalf("element %d = %d, want %d", i, got, i)
			}
		}
	})

	t.Run("PushRelocatesWhenStorageIsContested", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		a, err := NewArray(p, 2, 4)
		if err != nil {
			t.Fatalf("NewArray: %v", err)
		}

		for i := int32(0); i < 2; i++ {
			slot, err := a.Push()
			if err != nil {
				t.Fatalf("Push %d: %v", i, err)
			}
			putInt32(slot, i)
		}

		// An intervening allocation breaks the contiguity check.
		if _, err := p.Alloc(8); err != nil {
			t.Fatalf("Alloc: %v", err)
		}

		before := a.Elems()

		if _, err := a.Push(); err != nil {
			t.Fatalf("Push: %v", err)
		}

		if a.Elems() == before {
			t.Fatal("expected Push to relocate storage after a contesting allocation")
		}

		if getInt32(a.Elems()) != 0 || getInt32(unsafe.Add(a.Elems(), 4)) != 1 {
			t.Fatal("relocation did not preserve existing elements")
		}
	})

	t.Run("PushNReservesContiguousRun", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		a, err := NewArray(p, 4, 4)
		if err != nil {
			t.Fatalf("NewArray: %v", err)
		}

		slot, err := a.PushN(3)
		if err != nil {
			t.Fatalf("PushN: %v", err)
		}

		for i := int32(0); i < 3; i++ {
			putInt32(unsafe.Add(slot, uintptr(i)*4), i+1)
		}

		if a.Len() != 3 {
			t.Fatalf("Len() = %d, want 3", a.Len())
		}
	})

	t.Run("DestroyReclaimsUncontestedStorage", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		a, err := NewArray(p, 2, 4)
		if err != nil {
			t.Fatalf("NewArray: %v", err)
		}

		lastBefore := p.current.last
		a.Destroy()

		if p.current.last >= lastBefore {
			t.Fatal("Destroy did not rewind the bump pointer for uncontested storage")
		}
	})

	t.Run("RejectsNonPositiveDimensions", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if _, err := NewArray(p, 0, 4); err == nil {
			t.Fatal("expected an error for n=0")
		}

		if _, err := NewArray(p, 1, 0); err == nil {
			t.Fatal("expected an error for size=0")
		}
	})
}
