package postgres

import (
	"context"
	"testing"
)

func TestNewStoreRejectsBadDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, err := NewStore(context.Background(), "://not-a-dsn"); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}
