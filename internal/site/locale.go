package site

import (
	"net/http"

	"golang.org/x/text/language"
)

// supported lists the locales the site renders, English first as default.
var supported = []language.Tag{
	language.English,
	language.Indonesian,
}

var matcher = language.NewMatcher(supported)

var greetings = map[string]string{
	"en": "Clarity for decisions that matter",
	"id": "Kejelasan untuk keputusan yang penting",
}

// NegotiateLocale picks the best supported locale from the Accept-Language
// header. A missing or malformed header falls back to English.
func NegotiateLocale(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, idx, _ := matcher.Match(tags...)
	base, _ := supported[idx].Base()
	return base.String()
}

// Greeting returns the hero line for the locale.
func Greeting(locale string) string {
	if g, ok := greetings[locale]; ok {
		return g
	}
	return greetings["en"]
}
