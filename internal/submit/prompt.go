package submit

import "strings"

// PromptSeparator joins per-image instructions.
const PromptSeparator = "; "

// BuildPrompt trims each annotation, drops empty ones and joins the rest in
// slot order.
func BuildPrompt(annotations []string) string {
	parts := make([]string, 0, len(annotations))
	for _, a := range annotations {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, PromptSeparator)
}
