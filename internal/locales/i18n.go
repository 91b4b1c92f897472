package locales

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

var (
	mu              sync.RWMutex
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
)

// Init loads the embedded message files and sets the default language.
// It is safe to call more than once; the last call wins.
func Init(defaultLangCode string) error {
	tag, err := language.Parse(defaultLangCode)
	if err != nil {
		log.Printf("WARN: Failed to parse default language code '%s': %v. Falling back to English.", defaultLangCode, err)
		tag = language.English
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("failed to read embedded locales: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if _, err := b.LoadMessageFileFS(localeFS, entry.Name()); err != nil {
			log.Printf("WARN: Failed to load message file '%s': %v", entry.Name(), err)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("no message files loaded from embedded locales")
	}

	mu.Lock()
	bundle = b
	defaultLanguage = tag
	mu.Unlock()

	log.Printf("i18n bundle initialized with %d file(s). Default language: %s", loaded, tag.String())
	return nil
}

// GetDefaultLanguageTag returns the configured default language tag.
func GetDefaultLanguageTag() language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	if bundle == nil {
		log.Panicln("Attempted to get default language tag before i18n bundle initialization.")
	}
	return defaultLanguage
}

// NewLocalizer creates a localizer for the given language preferences
// (tags such as "en", "zh-CN" or an Accept-Language header value).
// The default language is always appended as the last preference.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	mu.RLock()
	defer mu.RUnlock()
	if bundle == nil {
		log.Panicln("Attempted to create localizer before i18n bundle initialization.")
	}
	prefs := append(append([]string{}, langPrefs...), defaultLanguage.String())
	return i18n.NewLocalizer(bundle, prefs...)
}

// GetMessage retrieves and formats a message by its ID using the provided localizer.
// When the message cannot be localized it falls back to English and then
// to the message ID itself.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}, pluralCount *int) string {
	config := &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	}
	if pluralCount != nil {
		config.PluralCount = *pluralCount
	}

	localizedMsg, err := localizer.Localize(config)
	if err == nil {
		return localizedMsg
	}
	log.Printf("ERROR: Failed to localize message ID '%s': %v. Falling back to English.", msgID, err)

	mu.RLock()
	englishLocalizer := i18n.NewLocalizer(bundle, language.English.String())
	mu.RUnlock()
	if fallbackMsg, fallbackErr := englishLocalizer.Localize(config); fallbackErr == nil {
		return fallbackMsg
	}
	return msgID
}

// Text is shorthand for localizing msgID in lang with optional template data.
func Text(lang, msgID string, templateData map[string]interface{}) string {
	return GetMessage(NewLocalizer(lang), msgID, templateData, nil)
}
