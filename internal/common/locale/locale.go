// Package locale picks the interface language from the stored preference
// and the system locales.
package locale

import (
	"golang.org/x/text/language"
)

// Default is used when nothing else matches.
const Default = "pt"

var supported = []language.Tag{
	language.Portuguese, // first entry is the matcher's fallback
	language.Spanish,
}

var matcher = language.NewMatcher(supported)

// Supported reports whether tag resolves to one of the shipped languages.
func Supported(tag string) bool {
	if tag == "" {
		return false
	}
	t, err := language.Parse(tag)
	if err != nil {
		return false
	}
	_, _, conf := matcher.Match(t)
	return conf != language.No
}

// Resolve returns the base language to use. A supported stored preference
// wins; otherwise the first matching system locale; otherwise Default.
func Resolve(preferred string, system ...string) string {
	if preferred != "" && Supported(preferred) {
		return base(preferred)
	}

	var tags []language.Tag
	for _, s := range system {
		if t, err := language.Parse(s); err == nil {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return Default
	}

	tag, _, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	b, _ := tag.Base()
	return b.String()
}

func base(tag string) string {
	t, _, _ := matcher.Match(language.Make(tag))
	b, _ := t.Base()
	return b.String()
}
