package version

import "testing"

func TestSatisfies(t *testing.T) {
	t.Run("MatchingConstraint", func(t *testing.T) {
		ok, err := Satisfies(">=1.0.0, <2.0.0")
		if err != nil {
			t.Fatalf("Satisfies: %v", err)
		}

		if !ok {
			t.Fatalf("ABI %s expected to satisfy >=1.0.0, <2.0.0", ABI)
		}
	})

	t.Run("NonMatchingConstraint", func(t *testing.T) {
		ok, err := Satisfies(">=2.0.0")
		if err != nil {
			t.Fatalf("Satisfies: %v", err)
		}

		if ok {
			t.Fatalf("ABI %s should not satisfy >=2.0.0", ABI)
		}
	})

	t.Run("InvalidConstraintErrors", func(t *testing.T) {
		if _, err := Satisfies("not a constraint"); err == nil {
			t.Fatal("expected an error for a malformed constraint")
		}
	})
}
