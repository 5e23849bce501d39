// Package bot is the distributor front-end: it turns chat events into
// issuance-engine calls and renders categorical outcomes as messages over
// the out-of-scope Messenger transport.
package bot

// EnglishTranslator is the shipped fallback Translator. Real i18n lives
// outside the core; any unknown language or key falls back to English.
type EnglishTranslator struct{}

var english = map[string]string{
	"welcome":             "Welcome! Use the menu to request your promo codes.",
	"keys_ready":          "Your promo codes are ready:",
	"no_keys_available":   "%s: no codes available right now\n",
	"daily_limit_reached": "Daily limit reached. Come back tomorrow!",
	"wait_time":           "Please wait %d min %d sec before the next request.",
	"banned":              "You are banned from using this bot.",
	"issue_error":         "Something went wrong, please try again later.",
	"stats": "Status: %s\nAchievement: %s\nRequests today: %d\nKeys total: %d\nDays with us: %d",
}

// Lookup resolves key for lang; English-only, so lang is ignored.
func (EnglishTranslator) Lookup(_, key string) string {
	if s, ok := english[key]; ok {
		return s
	}
	return key
}
