package server

import (
	"testing"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

func TestRegistryIdentifyUpdatesInPlace(t *testing.T) {
	r := NewRegistry()

	d, created := r.Identify("gm-1", game.DeviceGM, "1.0.0", "sess-1")
	if !created {
		t.Fatal("expected a new record")
	}
	if d.SessionID != "sess-1" || !d.Connected {
		t.Fatalf("unexpected record: %+v", d)
	}

	d, created = r.Identify("gm-1", "", "1.0.1", "sess-1")
	if created {
		t.Fatal("re-identify must not create a second record")
	}
	if d.Version != "1.0.1" || d.Type != game.DeviceGM {
		t.Errorf("unexpected record after re-identify: %+v", d)
	}
	if len(r.List()) != 1 {
		t.Errorf("expected 1 device, got %d", len(r.List()))
	}
}

func TestRegistryRebindsToCurrentSession(t *testing.T) {
	r := NewRegistry()
	r.Identify("gm-1", game.DeviceGM, "1.0.0", "sess-1")
	r.Disconnect("gm-1")

	// The first session was ended and archived and a new one started before
	// the station came back. The record must follow the live session, not
	// keep naming the archived one.
	d, created := r.Identify("gm-1", game.DeviceGM, "1.0.0", "sess-2")
	if created {
		t.Fatal("expected the existing record")
	}
	if d.SessionID != "sess-2" {
		t.Errorf("expected rebinding to the current session, got %q", d.SessionID)
	}
	if !d.Connected {
		t.Error("expected connected after re-identify")
	}
}
