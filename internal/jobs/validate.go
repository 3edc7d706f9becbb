package jobs

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// DefaultSourcePattern matches the single-video sources the fetcher accepts.
const DefaultSourcePattern = `(?i)^https?://((www|m|music)\.)?(youtube\.com|youtu\.be)/`

// Markers that identify a playlist or collection rather than a single video.
var collectionMarkers = []string{"list=", "playlist"}

// Validator checks intake requests in a fixed order: scheme, source, single
// resource, format. The first failure wins.
type Validator struct {
	source *regexp.Regexp
}

// NewValidator compiles pattern; an empty pattern uses DefaultSourcePattern.
func NewValidator(pattern string) (*Validator, error) {
	if pattern == "" {
		pattern = DefaultSourcePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile source pattern: %w", err)
	}
	return &Validator{source: re}, nil
}

// Validate returns the normalized URL and format, or an intake error.
func (v *Validator) Validate(rawURL, rawFormat string) (string, models.Format, error) {
	u := strings.TrimSpace(rawURL)

	parsed, err := url.Parse(u)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", "", ErrInvalidURL
	}
	if !v.source.MatchString(u) {
		return "", "", ErrInvalidURL
	}
	if !IsSingleResource(u) {
		return "", "", ErrNotSingleResource
	}

	format, ok := models.ParseFormat(rawFormat)
	if !ok {
		return "", "", ErrBadFormat
	}
	return u, format, nil
}

// IsSingleResource reports whether u carries no playlist/collection markers.
func IsSingleResource(u string) bool {
	lower := strings.ToLower(u)
	for _, m := range collectionMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// ResolveTitle picks the display title: a non-empty override wins unless it is
// the "no" sentinel; otherwise the fetched title, then "download".
func ResolveTitle(override, fetched string) string {
	o := strings.TrimSpace(override)
	if o != "" && !strings.EqualFold(o, "no") {
		return o
	}
	if f := strings.TrimSpace(fetched); f != "" {
		return f
	}
	return "download"
}
