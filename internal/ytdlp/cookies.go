package ytdlp

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CookieReport is the outcome of validating the credential artifact.
type CookieReport struct {
	Exists         bool
	NetscapeFormat bool
	HasDomain      bool
	HasAuth        bool
	Size           int64
}

// Valid reports whether the artifact is usable for authentication:
// it must cover the target domain and carry auth cookies.
func (r CookieReport) Valid() bool { return r.HasDomain && r.HasAuth }

// ValidateCookiesFile inspects the cookie artifact. Problems short of
// outright absence are logged as warnings, matching the tool's own
// tolerance of slightly malformed cookie files.
func ValidateCookiesFile(path string) CookieReport {
	var report CookieReport
	if path == "" {
		return report
	}

	info, err := os.Stat(path)
	if err != nil {
		return report
	}
	report.Exists = true
	report.Size = info.Size()

	raw, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Error("Cookies file inaccessible")
		return report
	}
	content := string(raw)

	report.NetscapeFormat = strings.Contains(content, "# Netscape HTTP Cookie File")
	if !report.NetscapeFormat {
		log.Warn("Cookies file is not in Netscape format")
	}
	if report.Size < 100 {
		log.WithField("size", report.Size).Warn("Cookies file suspiciously small")
	}

	report.HasDomain = strings.Contains(content, "youtube.com") ||
		strings.Contains(content, ".youtube.com")
	if !report.HasDomain {
		log.Warn("Cookies file missing YouTube domain")
	}

	for _, name := range []string{"LOGIN_INFO", "SID", "HSID", "SSID"} {
		if strings.Contains(content, name) {
			report.HasAuth = true
			break
		}
	}
	if !report.HasAuth {
		log.Warn("Cookies file missing auth cookies")
	}
	return report
}
