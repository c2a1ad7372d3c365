// Package imagefetch builds the guarded HTTP client used by the image relay.
package imagefetch

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// Image names served by the relay come from the URL path; only plain
// filenames are accepted so a caller cannot steer the fetch off the
// configured origin.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// NewClient returns an HTTP client that refuses to dial private, loopback,
// link-local, and metadata addresses. safeurl validates resolved IPs at the
// dialer, which also covers DNS rebinding.
func NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidFilename reports whether name is a plain image filename with no
// traversal sequences.
func ValidFilename(name string) bool {
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	return filenamePattern.MatchString(name)
}
