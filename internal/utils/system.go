package utils

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// SystemInfo holds information about the current system
type SystemInfo struct {
	OS            string
	Architecture  string
	ChromePresent bool
	ChromePath    string
}

// DetectSystem returns the OS and architecture, and where Chrome is when
// configured is empty.
func DetectSystem(configured string) SystemInfo {
	info := SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
	info.ChromePresent, info.ChromePath = FindChrome(configured)
	return info
}

// FindChrome returns the configured binary when it exists, otherwise the
// result of CheckChrome.
func FindChrome(configured string) (bool, string) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return true, configured
		}
		return false, ""
	}
	return CheckChrome()
}

// CheckChrome checks if google-chrome or chromium is installed
func CheckChrome() (bool, string) {
	binaries := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
	}
	for _, bin := range binaries {
		if path, err := exec.LookPath(bin); err == nil {
			return true, path
		}
	}

	for _, path := range getCommonChromePaths() {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}
	return false, ""
}

func getCommonChromePaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		return []string{}
	}
}

func getChromeVersion(path string) string {
	output, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// Probe reports whether something accepts TCP connections on addr.
func Probe(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// AgentAddress turns a ws/wss URL into the host:port it dials.
func AgentAddress(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("agent URL %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// ReportAgent writes whether the print agent's port is open.
func ReportAgent(w io.Writer, agentURL string) bool {
	addr, err := AgentAddress(agentURL)
	if err != nil {
		fmt.Fprintf(w, "  Print agent: invalid URL (%v)\n", err)
		return false
	}
	if Probe(addr, 300*time.Millisecond) {
		fmt.Fprintf(w, "  Print agent: listening on %s\n", addr)
		return true
	}
	fmt.Fprintf(w, "  Print agent: nothing listening on %s, sales will print through the browser\n", addr)
	return false
}

// ReportSystem writes the system summary to w. It returns an error when
// Chrome is missing, which only matters for the "chrome" browser mode.
func ReportSystem(w io.Writer, info SystemInfo) error {
	fmt.Fprintf(w, "System Information:\n")
	fmt.Fprintf(w, "  OS: %s\n", info.OS)
	fmt.Fprintf(w, "  Architecture: %s\n", info.Architecture)

	if info.ChromePresent {
		fmt.Fprintf(w, "  Chrome/Chromium: %s (%s)\n", info.ChromePath, getChromeVersion(info.ChromePath))
		return nil
	}

	fmt.Fprintln(w, "  Chrome/Chromium: not found, documents will only be written as HTML")
	switch info.OS {
	case "linux":
		fmt.Fprintln(w, "  Install with: sudo apt install chromium-browser (or your distribution's chromium package)")
	case "darwin":
		fmt.Fprintln(w, "  Install with: brew install --cask google-chrome")
	case "windows":
		fmt.Fprintln(w, "  Download Google Chrome: https://www.google.com/chrome/")
	}
	return fmt.Errorf("chrome/chromium is required for pdf output but not installed")
}
