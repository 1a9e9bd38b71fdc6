package businessflow

import "strings"

// RenderTemplate substitutes named placeholders of the form {{key}} (whitespace
// inside the braces is tolerated) with values from data. Placeholders without a
// matching key render as an empty string, so a half-filled attribute map never
// leaks raw markers into an outgoing message.
func RenderTemplate(template string, data map[string]string) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start

		b.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+2 : end])
		b.WriteString(data[key])
		rest = rest[end+2:]
	}
}

// RecipientAttributes builds the substitution map for a recipient: name plus the
// channel addresses it carries.
func RecipientAttributes(name string, email, phone *string) map[string]string {
	attrs := map[string]string{
		"name": name,
	}
	if email != nil {
		attrs["email"] = *email
	}
	if phone != nil {
		attrs["phone"] = *phone
	}
	if name != "" {
		parts := strings.Fields(name)
		attrs["first_name"] = parts[0]
		if len(parts) > 1 {
			attrs["last_name"] = parts[len(parts)-1]
		}
	}
	return attrs
}
