package validator

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	itemIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	compositePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}(\+[A-Za-z0-9_-]{1,32})?$`)
)

// ValidateItemID validates an item identifier
func ValidateItemID(id string) bool {
	return itemIDPattern.MatchString(id)
}

// ValidateCompositeFormat validates a "<video>+<audio>" or single format id
func ValidateCompositeFormat(formatID string) bool {
	return compositePattern.MatchString(formatID)
}

// ValidateHost reports whether rawURL is an http(s) URL whose host is one
// of allowedHosts or a subdomain of one.
func ValidateHost(rawURL string, allowedHosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, allowed := range allowedHosts {
		cleanHost := strings.ToLower(strings.TrimSpace(allowed))
		if len(cleanHost) == 0 {
			continue
		}
		if host == cleanHost || strings.HasSuffix(host, "."+cleanHost) {
			return true
		}
	}

	return false
}

// SanitizeFilename removes dangerous characters from filename
func SanitizeFilename(filename string) string {
	dangerousChars := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*", "\x00", "\r", "\n"}
	result := filename
	for _, char := range dangerousChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}
