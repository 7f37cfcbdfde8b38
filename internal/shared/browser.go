package shared

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// Opener hands a URL to something that can show it to the user: a browser, a terminal, a test recorder.
type Opener func(url string) error

// OpenBrowser opens the default system browser to the specified URL.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(getRuntime(), url)
	if err != nil {
		return err
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "cmd", []string{"/c", "start", url}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// PrintOpener returns an [Opener] that writes the URL to w, for headless sessions.
func PrintOpener(w io.Writer) Opener {
	return func(url string) error {
		_, err := fmt.Fprintf(w, "Open this URL in your browser:\n  %s\n", url)
		return err
	}
}

// FallbackOpener tries the system browser and prints the URL to w when that fails.
func FallbackOpener(w io.Writer) Opener {
	printer := PrintOpener(w)
	return func(url string) error {
		if err := OpenBrowser(url); err != nil {
			return printer(url)
		}
		return nil
	}
}
