package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("[visualiser] client %s connected", "c1")
	if len(got) != 1 || got[0] != "[visualiser] client c1 connected" {
		t.Fatalf("unexpected log lines: %q", got)
	}

	SetLogger(nil)
	Logf("dropped %d", 1)
	if len(got) != 1 {
		t.Errorf("nil logger should discard, got %q", got)
	}
}
