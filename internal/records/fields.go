package records

import (
	"net/url"
	"strings"

	"github.com/dimitrije/passkeep/internal/models"
)

const (
	maxTitleLen    = 255
	maxUsernameLen = 255
	maxURLLen      = 2048
)

// Normalize trims the single-line fields. Password and notes are kept verbatim.
func Normalize(f models.RecordFields) models.RecordFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Username = strings.TrimSpace(f.Username)
	f.URL = strings.TrimSpace(f.URL)
	return f
}

// Validate applies the same checks a browser form with required and type=url inputs would.
func Validate(f models.RecordFields) error {
	switch {
	case strings.TrimSpace(f.Title) == "":
		return &ValidationError{Field: "title", Message: "is required"}
	case len(f.Title) > maxTitleLen:
		return &ValidationError{Field: "title", Message: "is too long"}
	case strings.TrimSpace(f.Username) == "":
		return &ValidationError{Field: "username", Message: "is required"}
	case len(f.Username) > maxUsernameLen:
		return &ValidationError{Field: "username", Message: "is too long"}
	case f.Password == "":
		return &ValidationError{Field: "password", Message: "is required"}
	}

	if f.URL != "" {
		if len(f.URL) > maxURLLen {
			return &ValidationError{Field: "url", Message: "is too long"}
		}
		u, err := url.Parse(f.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{Field: "url", Message: "must be an http or https address"}
		}
	}

	return nil
}
