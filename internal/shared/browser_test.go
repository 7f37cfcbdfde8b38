package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos string
		want string
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "cmd"},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, "https://example.com")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tt.want {
				t.Errorf("command = %s, want %s", name, tt.want)
			}
			if args[len(args)-1] != "https://example.com" {
				t.Errorf("url should be the last argument, got %v", args)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		orig := getRuntime
		defer func() { getRuntime = orig }()
		getRuntime = func() string { return "plan9" }

		if err := OpenBrowser("https://example.com"); err == nil {
			t.Error("expected error on unsupported platform")
		}
	})
}

func TestFallbackOpener(t *testing.T) {
	orig := getRuntime
	defer func() { getRuntime = orig }()
	getRuntime = func() string { return "plan9" }

	var buf bytes.Buffer
	if err := FallbackOpener(&buf)("https://backend.test/auth/google/login"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "https://backend.test/auth/google/login") {
		t.Errorf("expected URL to be printed, got %q", buf.String())
	}
}
