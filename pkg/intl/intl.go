package intl

import (
	"golang.org/x/text/language"
)

type SupportedLanguage struct {
	Code        string
	VerboseName string
	Tag         language.Tag
}

var (
	// allSupportedLanguages is every language the portal ships messages for.
	allSupportedLanguages = []SupportedLanguage{
		{Code: "en", VerboseName: "English", Tag: language.English},
		{Code: "zh", VerboseName: "中文", Tag: language.Chinese},
	}

	SupportedLanguages = allSupportedLanguages
)

// GetSupportedLanguages filters the shipped languages down to the given codes.
// An empty allowlist keeps them all.
func GetSupportedLanguages(allowlist []string) []SupportedLanguage {
	if len(allowlist) == 0 {
		return allSupportedLanguages
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, code := range allowlist {
		allowed[code] = true
	}

	filtered := make([]SupportedLanguage, 0, len(allowlist))
	for _, lang := range allSupportedLanguages {
		if allowed[lang.Code] {
			filtered = append(filtered, lang)
		}
	}
	return filtered
}
