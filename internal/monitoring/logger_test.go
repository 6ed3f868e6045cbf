package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("hello %d", 42)
	if len(captured) != 1 || captured[0] != "hello 42" {
		t.Errorf("unexpected capture: %v", captured)
	}

	// nil restores a no-op logger without panicking.
	SetLogger(nil)
	Logf("dropped")
	if len(captured) != 1 {
		t.Errorf("no-op logger still captured: %v", captured)
	}
}

func TestTracef(t *testing.T) {
	defer SetLogger(nil)
	defer EnableTrace(false)

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Tracef("quiet")
	if len(captured) != 0 {
		t.Errorf("trace output while disabled: %v", captured)
	}

	EnableTrace(true)
	Tracef("loud %s", "now")
	if len(captured) != 1 || captured[0] != "loud now" {
		t.Errorf("unexpected capture: %v", captured)
	}
}
