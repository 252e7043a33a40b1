// Package i18n localizes user-facing messages: API error bodies and the
// notification texts pushed to clients.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Message ids shared by callers.
const (
	MsgValidation      = "error.validation"
	MsgForbidden       = "error.forbidden"
	MsgInvalidState    = "error.invalid_state"
	MsgConflict        = "error.conflict"
	MsgNotFound        = "error.not_found"
	MsgUnavailable     = "error.unavailable"
	MsgInternal        = "error.internal"
	MsgUnauthenticated = "error.unauthenticated"
	MsgBadRequest      = "error.bad_request"
	MsgTooLarge        = "error.payload_too_large"

	MsgRequestAdded    = "notify.request_added"
	MsgRequestUpdated  = "notify.request_updated"
	MsgRequestDeleted  = "notify.request_deleted"
	MsgTripAdded       = "notify.trip_added"
	MsgTripUpdated     = "notify.trip_updated"
	MsgTripDeleted     = "notify.trip_deleted"
	MsgRequestApproved = "notify.request_approved"
	MsgUpdateFailed    = "notify.update_failed"
	MsgApproveFailed   = "notify.approve_failed"
)

type ctxKey struct{}

// Bundle holds the parsed locale files.
type Bundle struct {
	bundle        *i18n.Bundle
	matcher       language.Matcher
	defaultLocale string
}

// New loads every embedded locale file. defaultLocale is used when a
// context carries none; empty means "en".
func New(defaultLocale string) (*Bundle, error) {
	if defaultLocale == "" {
		defaultLocale = "en"
	}

	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n.New: read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n.New: read %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("i18n.New: parse %s: %w", e.Name(), err)
		}
	}

	return &Bundle{
		bundle:        b,
		matcher:       language.NewMatcher(b.LanguageTags()),
		defaultLocale: defaultLocale,
	}, nil
}

// Match picks the best supported locale for an Accept-Language header.
// An empty or unparsable header yields the default locale.
func (b *Bundle) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.defaultLocale
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.defaultLocale
	}
	base, _ := b.bundle.LanguageTags()[idx].Base()
	return base.String()
}

// WithLocale returns a new context carrying the given locale, e.g. "fil".
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// LocaleFromContext returns the locale stored by WithLocale, or def.
func LocaleFromContext(ctx context.Context, def string) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return def
}

// T translates messageID in the context's locale. Unknown ids come back
// unchanged.
func (b *Bundle) T(ctx context.Context, messageID string, templateData ...map[string]any) string {
	l := i18n.NewLocalizer(b.bundle, LocaleFromContext(ctx, b.defaultLocale), b.defaultLocale)

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(templateData) > 0 && templateData[0] != nil {
		cfg.TemplateData = templateData[0]
	}

	msg, err := l.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}
