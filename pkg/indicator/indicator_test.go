package indicator

import "testing"

type recordingLED struct {
	values []bool
	closed bool
}

func (r *recordingLED) Set(on bool) error {
	r.values = append(r.values, on)
	return nil
}

func (r *recordingLED) Close() error {
	r.closed = true
	return nil
}

func TestIndicatorCombinesSources(t *testing.T) {
	led := &recordingLED{}
	ind := New(led)

	ind.Update("mjpeg", true)
	ind.Update("h264", true)
	ind.Update("mjpeg", false)
	if !ind.Lit() {
		t.Fatal("Expected LED lit while h264 is active")
	}
	ind.Update("h264", false)
	if ind.Lit() {
		t.Fatal("Expected LED off with no active sources")
	}

	want := []bool{true, false}
	if len(led.values) != len(want) {
		t.Fatalf("Expected %v transitions, got %v", want, led.values)
	}
	for i := range want {
		if led.values[i] != want[i] {
			t.Errorf("Transition %d: expected %v, got %v", i, want[i], led.values[i])
		}
	}
}

func TestIndicatorCloseTurnsOff(t *testing.T) {
	led := &recordingLED{}
	ind := New(led)
	ind.Update("h264", true)
	if err := ind.Close(); err != nil {
		t.Fatal(err)
	}
	if !led.closed || led.values[len(led.values)-1] {
		t.Errorf("Expected LED switched off and closed, got %v closed=%v", led.values, led.closed)
	}
}

func TestIndicatorWithoutLED(t *testing.T) {
	ind := New(nil)
	ind.Update("h264", true)
	if !ind.Lit() {
		t.Error("Expected state tracked without hardware")
	}
	if err := ind.Close(); err != nil {
		t.Error(err)
	}
}
