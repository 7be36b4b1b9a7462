package site

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateLocale(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"en-US,en;q=0.9", "en"},
		{"id-ID,id;q=0.9,en;q=0.5", "id"},
		{"fr-FR,fr;q=0.9", "en"},
		{"not a header", "en"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			r.Header.Set("Accept-Language", tc.header)
		}
		assert.Equal(t, tc.want, NegotiateLocale(r), "header %q", tc.header)
	}
}

func TestGreetingFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, greetings["en"], Greeting("fr"))
	assert.Equal(t, greetings["id"], Greeting("id"))
}
