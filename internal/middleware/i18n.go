// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docucontrol/tramites-portal/internal/i18n"
)

// I18nMiddleware picks the response language from the lang query parameter
// or Accept-Language, falling back to defaultLang.
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if !i18n.IsSupported(defaultLang) {
		defaultLang = i18n.DefaultLanguage
	}

	return func(c *gin.Context) {
		lang := defaultLang
		if q := normalizeLang(c.Query("lang")); i18n.IsSupported(q) {
			lang = q
		} else if header := c.GetHeader("Accept-Language"); header != "" {
			lang = negotiate(header, defaultLang)
		}

		c.Set("lang", lang)
		c.Next()
	}
}

// negotiate returns the first supported language in header order, e.g.
// "es-CO,es;q=0.9,en;q=0.8" gives "es".
func negotiate(header, fallback string) string {
	for _, part := range strings.Split(header, ",") {
		lang := normalizeLang(strings.Split(part, ";")[0])
		if i18n.IsSupported(lang) {
			return lang
		}
	}
	return fallback
}

func normalizeLang(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return tag
}
