package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves the locale for a request: an explicit lang query
// parameter first, then Accept-Language by q-value, then def. Only base
// languages are returned ("es-EC" resolves to "es").
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := map[string]struct{}{}
	for _, s := range supported {
		sup[strings.ToLower(s)] = struct{}{}
	}

	pick := func(tag language.Tag) (string, bool) {
		base, conf := tag.Base()
		if conf != language.Exact {
			return "", false
		}
		if _, ok := sup[base.String()]; ok {
			return base.String(), true
		}
		return "", false
	}

	if queryLang != "" {
		if tag, err := language.Parse(queryLang); err == nil {
			if v, ok := pick(tag); ok {
				return v
			}
		}
	}
	// tags come back ordered by descending q
	if tags, _, err := language.ParseAcceptLanguage(acceptLang); err == nil {
		for _, tag := range tags {
			if v, ok := pick(tag); ok {
				return v
			}
		}
	}
	if _, ok := sup[strings.ToLower(def)]; ok {
		return strings.ToLower(def)
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}
