package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("sess")
	if !strings.HasPrefix(id, "sess_") || len(id) != len("sess_")+32 {
		t.Fatalf("unexpected id %q", id)
	}
	if NewID("") == NewID("") {
		t.Fatal("ids must be unique")
	}
}
