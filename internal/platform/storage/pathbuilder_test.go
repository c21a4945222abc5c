package storage

import (
	"testing"
	"time"
)

func TestProofObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000000).UTC()

	path, err := ProofObjectPath("BS-01H", "receipt.JPG", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "orders/BS-01H/proof-1700000000000.jpg" {
		t.Fatalf("unexpected path %q", path)
	}

	// Missing extension falls back to png.
	path, err = ProofObjectPath("BS-01H", "capture", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "orders/BS-01H/proof-1700000000000.png" {
		t.Fatalf("unexpected fallback path %q", path)
	}

	if _, err := ProofObjectPath(" ", "a.png", now); err == nil {
		t.Fatalf("expected error for blank order id")
	}
	if _, err := ProofObjectPath("../evil", "a.png", now); err == nil {
		t.Fatalf("expected error for path separator in id")
	}
}

func TestProductImagePath(t *testing.T) {
	now := time.UnixMilli(1700000000000).UTC()

	path, err := ProductImagePath("p1", "photo.webp", 2, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "products/p1/1700000000000_2.webp" {
		t.Fatalf("unexpected path %q", path)
	}

	if _, err := ProductImagePath("p1", "photo.png", -1, now); err == nil {
		t.Fatalf("expected error for negative index")
	}
}
