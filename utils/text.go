package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
)

// FoldSearch reduces s to a case- and accent-insensitive form for matching,
// e.g. "Qué Onda" and "que onda" fold to the same string.
func FoldSearch(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(unidecode.Unidecode(s))
}

// ObjectKey builds a unique storage key like "badges/night-owl-<uuid>.png".
func ObjectKey(prefix, name, filename string) string {
	base := slug.Make(name)
	if base == "" {
		base = "file"
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return prefix + "/" + base + "-" + uuid.NewString() + ext
}
