package cli

import (
	"bytes"
	"testing"
)

func TestStatusPrefixes(t *testing.T) {
	buf := &bytes.Buffer{}
	status := NewStatus(buf)

	status.Successf("server listening on %s", "127.0.0.1:8443")
	status.Failf("certificate and key do NOT match")
	status.Warnf("certificate expires in %d days", 12)
	status.Infof("plain line")
	status.Blank()

	expected := "✓ server listening on 127.0.0.1:8443\n" +
		"✗ certificate and key do NOT match\n" +
		"⚠  certificate expires in 12 days\n" +
		"plain line\n" +
		"\n"
	if buf.String() != expected {
		t.Errorf("status output = %q, want %q", buf.String(), expected)
	}
}

func TestNewStatusNilWriter(t *testing.T) {
	status := NewStatus(nil)
	if status.w == nil {
		t.Error("NewStatus(nil) should default to a writer")
	}
}
