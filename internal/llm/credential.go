package llm

import "strings"

const (
	// minAPIKeyLength is the shortest key accepted as plausibly real.
	minAPIKeyLength = 10
	// placeholderAPIKey is what an unset variable turns into when a build step
	// stringifies it.
	placeholderAPIKey = "undefined"
)

// ValidateAPIKey checks the structure of a provider credential. It never
// contacts the provider.
func ValidateAPIKey(setting, key string) error {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return &ConfigurationError{Setting: setting, Reason: "is not set"}
	case key == placeholderAPIKey:
		return &ConfigurationError{Setting: setting, Reason: "contains a placeholder value"}
	case len(key) < minAPIKeyLength:
		return &ConfigurationError{Setting: setting, Reason: "is too short to be a valid key"}
	}
	return nil
}
