package utils

import (
	"errors"
	"regexp"
	"strings"
)

var tagRx = regexp.MustCompile(`^[a-zA-Z0-9 _\-]{1,32}$`)

var modelExtensions = []string{".zip", ".fmu"}

// ModelFilename checks for a .zip or .fmu suffix, ignoring case.
func ModelFilename(fn string) error {
	fn = strings.TrimSpace(fn)
	if fn == "" {
		return errors.New("modelName is required")
	}
	lower := strings.ToLower(fn)
	for _, ext := range modelExtensions {
		if strings.HasSuffix(lower, ext) {
			return nil
		}
	}
	return errors.New("only .zip and .fmu models allowed")
}

// TagsOK allows no tags or up to 10 tags matching tagRx.
func TagsOK(tags []string) error {
	if len(tags) > 10 {
		return errors.New("provide at most 10 tags")
	}
	for _, t := range tags {
		if !tagRx.MatchString(t) {
			return errors.New("invalid tag: " + t)
		}
	}
	return nil
}
