package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a value while keeping a short suffix for correlation.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskSecret(trimmed)
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}

// MaskFields returns a copy of input where the listed keys are redacted.
// Nested maps are walked with the same key set.
func MaskFields(input map[string]any, keys ...string) map[string]any {
	if len(input) == 0 {
		return nil
	}

	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
	}

	return maskMap(input, sensitive)
}

func maskMap(input map[string]any, sensitive map[string]struct{}) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[trimmedKey] = maskMap(nested, sensitive)
			continue
		}
		lowered := strings.ToLower(trimmedKey)
		if _, ok := sensitive[lowered]; !ok {
			out[trimmedKey] = value
			continue
		}
		str, ok := value.(string)
		if !ok {
			out[trimmedKey] = maskToken
			continue
		}
		if lowered == "email" {
			out[trimmedKey] = MaskEmail(str)
		} else {
			out[trimmedKey] = MaskSecret(str)
		}
	}
	return out
}
