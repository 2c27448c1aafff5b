package diag

import "testing"

func TestFault(t *testing.T) {
	t.Run("ErrorIncludesCategoryAndCode", func(t *testing.T) {
		f := PoolExhausted(4096)

		if f.Category != CategoryMemory {
			t.Fatalf("Category = %s, want %s", f.Category, CategoryMemory)
		}

		if got, want := f.Error(), "[MEMORY:POOL_EXHAUSTED]"; len(got) < len(want) || got[:len(want)] != want {
			t.Fatalf("Error() = %q, want prefix %q", got, want)
		}
	})

	t.Run("RecoveredWrapsPanicValue", func(t *testing.T) {
		f := Recovered("boom")

		if f.Category != CategoryPanic {
			t.Fatalf("Category = %s, want %s", f.Category, CategoryPanic)
		}

		if f.Message != "boom" {
			t.Fatalf("Message = %q, want %q", f.Message, "boom")
		}
	})
}
