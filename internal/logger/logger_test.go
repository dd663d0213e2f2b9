package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// capture redirects stdout around fn and returns what was printed.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestLevelsCarryTagAndMessage(t *testing.T) {
	out := capture(t, func() {
		Info("DB", "opened")
		Success("DB", "migrated")
		Warn("WS", "slow client")
		Error("PDF", "extraction failed")
	})

	for _, want := range []string{"[DB]", "opened", "migrated", "[WS]", "slow client", "[PDF]", "extraction failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestBanner_NoPanic(t *testing.T) {
	out := capture(t, func() {
		Banner("v1.0.0")
		Banner("")
	})
	if !strings.Contains(out, "v1.0.0") {
		t.Errorf("banner missing version\n%s", out)
	}
	// Empty version falls back to dev.
	if !strings.Contains(out, "dev") {
		t.Errorf("banner missing dev fallback\n%s", out)
	}
}

func TestSectionStatsAndServer(t *testing.T) {
	out := capture(t, func() {
		Section("Seed")
		Stats("users", 4)
		Server("127.0.0.1:8000")
	})
	if !strings.Contains(out, "Seed") || !strings.Contains(out, "users") || !strings.Contains(out, "4") {
		t.Errorf("section/stats output incomplete\n%s", out)
	}
	if !strings.Contains(out, "http://127.0.0.1:8000") {
		t.Errorf("server line missing address\n%s", out)
	}
}
