package images

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicID extracts the object id from a delivery URL such as
// https://res.example.com/demo/image/upload/v123/shop/robe.jpg, giving
// "shop/robe". ok is false when the URL has no upload segment.
func PublicID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	start := -1
	for i, p := range parts {
		if p == "upload" {
			start = i + 1
			break
		}
	}
	if start < 0 || start >= len(parts) {
		return "", false
	}
	if versionSegment.MatchString(parts[start]) {
		start++
	}
	if start >= len(parts) {
		return "", false
	}

	id := strings.Join(parts[start:], "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	return id, id != ""
}
