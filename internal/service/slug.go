package service

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const maxSlugLen = 80

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe slug from a headline.
func slugify(headline string) string {
	s := strings.ToLower(headline)
	s = nonSlugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "incident"
	}
	return s
}

// slugSuffix returns a short random suffix used to resolve slug collisions.
func slugSuffix() string {
	return uuid.NewString()[:8]
}
