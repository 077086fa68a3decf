package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageType(t *testing.T) {
	cases := map[string]string{
		"":                                  PageOther,
		"/":                                 PageHomepage,
		"https://shop.example.com":          PageHomepage,
		"https://shop.example.com/":         PageHomepage,
		"/shop?debug=1":                     "shop",
		"/Shop/product/desk-lamp-7":         "shop",
		"https://shop.example.com/cart#top": "cart",
		"settings/app/1":                    "settings",
	}
	for in, want := range cases {
		assert.Equal(t, want, PageType(in), in)
	}
}
