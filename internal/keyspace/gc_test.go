package keyspace

import "testing"

func TestSweepExpiredDeletesOnlyExpired(t *testing.T) {
	ks := newTestKeyspace(t, 1)

	ks.Set("fresh", []byte("v"))
	ks.Set("stale", []byte("v"))
	ks.Expire("stale", -1) //nolint:errcheck

	ratio := ks.SweepExpired(10)
	if ratio <= 0 {
		t.Fatalf("SweepExpired ratio = %v, want > 0", ratio)
	}

	if ks.Exists("stale") {
		t.Fatal("expired key survived sweep")
	}
	if !ks.Exists("fresh") {
		t.Fatal("fresh key was swept")
	}
}

func TestSweepExpiredZeroSamplesNoOp(t *testing.T) {
	ks := newTestKeyspace(t, 1)
	ks.Set("k", []byte("v"))

	if got := ks.SweepExpired(0); got != 0 {
		t.Fatalf("SweepExpired(0) = %v, want 0", got)
	}
	if !ks.Exists("k") {
		t.Fatal("SweepExpired(0) should not touch the keyspace")
	}
}
