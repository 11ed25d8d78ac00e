package journal

import (
	"context"
	"testing"
)

func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store
	// Must not panic without a database.
	s.Record(context.Background(), Entry{UserID: 1, FileName: "a.pdf", Outcome: OutcomeUploaded})
	s.Record(context.Background(), Entry{})
}

func TestNewWithoutDatabase(t *testing.T) {
	if New(nil) != nil {
		t.Fatal("New(nil) must return a nil store")
	}
}
