package catalog

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// reservedSlugs collide with top-level routes and cannot name a store.
var reservedSlugs = map[string]struct{}{
	"api":       {},
	"auth":      {},
	"dashboard": {},
	"health":    {},
	"webhooks":  {},
}

// Slugify lowercases s and joins its alphanumeric runs with single hyphens.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(slug, "-")
}

func IsReservedSlug(slug string) bool {
	_, reserved := reservedSlugs[slug]
	return reserved
}
