package intl

import (
	"context"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

type contextKey string

const (
	localizerKey contextKey = "localizer"
	localeKey    contextKey = "locale"
)

func WithLocalizer(ctx context.Context, l *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey, l)
}

// UseLocalizer returns the request localizer. The second return value is false
// outside of a localized request scope.
func UseLocalizer(ctx context.Context) (*i18n.Localizer, bool) {
	l, ok := ctx.Value(localizerKey).(*i18n.Localizer)
	return l, ok
}

func WithLocale(ctx context.Context, locale language.Tag) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}

// UseLocale returns the negotiated request locale, or fallback outside of a
// localized request scope.
func UseLocale(ctx context.Context, fallback language.Tag) language.Tag {
	if locale, ok := ctx.Value(localeKey).(language.Tag); ok {
		return locale
	}
	return fallback
}
