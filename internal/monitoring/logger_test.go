package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("[Scheduler] tick %d", 7)
	if got != "[Scheduler] tick 7" {
		t.Errorf("custom logger received %q", got)
	}

	got = ""
	SetLogger(nil)
	Logf("muted %d", 1)
	if got != "" {
		t.Errorf("nil logger should mute output, custom logger received %q", got)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
