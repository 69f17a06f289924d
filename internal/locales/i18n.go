// Package locales holds the translated messages returned by the API.
package locales

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"tgfeed/internal/logging"
)

// Message IDs.
const (
	MsgErrorInvalidChannel = "MsgErrorInvalidChannel"
	MsgErrorInvalidCursor  = "MsgErrorInvalidCursor"
	MsgErrorInvalidLimit   = "MsgErrorInvalidLimit"
	MsgErrorInternal       = "MsgErrorInternal"
	MsgErrorRateLimited    = "MsgErrorRateLimited"
	MsgErrorNotFound       = "MsgErrorNotFound"
	MsgErrorUnauthorized   = "MsgErrorUnauthorized"
)

//go:embed *.json
var localeFS embed.FS

var (
	mu              sync.RWMutex
	bundle          *i18n.Bundle
	defaultLanguage = language.English
)

// Init loads the embedded message files. defaultLangCode selects the
// language used when a request states no usable preference.
func Init(defaultLangCode string) error {
	log := logging.Component("locales")

	tag, err := language.Parse(defaultLangCode)
	if err != nil {
		log.Warn().Err(err).Str("lang", defaultLangCode).Msg("bad default language, falling back to English")
		tag = language.English
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := localeFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embedded locales: %w", err)
	}
	loaded := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		if _, err := b.LoadMessageFileFS(localeFS, f.Name()); err != nil {
			return fmt.Errorf("load message file %s: %w", f.Name(), err)
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("no message files found")
	}

	mu.Lock()
	bundle, defaultLanguage = b, tag
	mu.Unlock()
	log.Debug().Int("files", loaded).Str("default", tag.String()).Msg("i18n bundle initialized")
	return nil
}

// DefaultLanguage returns the configured default language.
func DefaultLanguage() language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLanguage
}

// Message localizes msgID for an Accept-Language header value. Unknown
// languages fall back to the default one, unknown IDs to the ID itself.
func Message(acceptLanguage, msgID string) string {
	b := currentBundle()
	if b == nil {
		return msgID
	}
	loc := i18n.NewLocalizer(b, acceptLanguage, DefaultLanguage().String())
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		return msgID
	}
	return msg
}

var initOnce sync.Once

func currentBundle() *i18n.Bundle {
	mu.RLock()
	b := bundle
	mu.RUnlock()
	if b != nil {
		return b
	}
	initOnce.Do(func() {
		if err := Init(language.English.String()); err != nil {
			l := logging.Component("locales")
			l.Error().Err(err).Msg("i18n init failed")
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return bundle
}
