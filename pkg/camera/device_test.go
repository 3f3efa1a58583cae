package camera

import (
	"errors"
	"testing"
)

func TestDeviceExclusive(t *testing.T) {
	d := NewDevice()

	first, err := d.acquire("h264")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := d.acquire("still"); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("Expected ErrDeviceBusy, got %v", err)
	}

	first.release()
	first.release()
	if owner := d.Owner(); owner != "" {
		t.Fatalf("Expected free device, got owner %q", owner)
	}

	second, err := d.acquire("mjpeg")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	// A stale release must not free someone else's claim.
	first.release()
	if owner := d.Owner(); owner != "mjpeg" {
		t.Errorf("Stale release freed the device, owner %q", owner)
	}
	second.release()
}

func TestNilDeviceNeverBlocks(t *testing.T) {
	var d *Device
	for i := 0; i < 2; i++ {
		l, err := d.acquire("h264")
		if err != nil {
			t.Fatalf("nil device refused a claim: %v", err)
		}
		l.release()
	}
	if d.Owner() != "" {
		t.Error("nil device reports an owner")
	}
}
