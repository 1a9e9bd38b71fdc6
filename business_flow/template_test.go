package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbitcrm/outreach-engine/utils"
)

func TestRenderTemplate(t *testing.T) {
	data := map[string]string{"name": "Ada", "city": "London"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"single placeholder", "hello {{name}}", "hello Ada"},
		{"repeated placeholder", "{{name}} and {{name}}", "Ada and Ada"},
		{"multiple keys", "{{name}} of {{city}}", "Ada of London"},
		{"inner whitespace", "hi {{ name }}", "hi Ada"},
		{"missing key renders empty", "hi {{nickname}}!", "hi !"},
		{"unterminated marker kept", "hi {{name", "hi {{name"},
		{"empty template", "", ""},
		{"adjacent placeholders", "{{name}}{{city}}", "AdaLondon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, data))
		})
	}
}

func TestRenderTemplateNilData(t *testing.T) {
	assert.Equal(t, "hi ", RenderTemplate("hi {{name}}", nil))
}

func TestRecipientAttributes(t *testing.T) {
	attrs := RecipientAttributes("Ada Lovelace", utils.ToPtr("ada@example.com"), nil)

	assert.Equal(t, "Ada Lovelace", attrs["name"])
	assert.Equal(t, "Ada", attrs["first_name"])
	assert.Equal(t, "Lovelace", attrs["last_name"])
	assert.Equal(t, "ada@example.com", attrs["email"])
	_, hasPhone := attrs["phone"]
	assert.False(t, hasPhone)
}

func TestRecipientAttributesSingleName(t *testing.T) {
	attrs := RecipientAttributes("Ada", nil, utils.ToPtr("+15550001111"))

	assert.Equal(t, "Ada", attrs["first_name"])
	_, hasLast := attrs["last_name"]
	assert.False(t, hasLast)
	assert.Equal(t, "+15550001111", attrs["phone"])
}

func TestRecipientAttributesEmptyName(t *testing.T) {
	attrs := RecipientAttributes("", nil, nil)

	assert.Equal(t, "", attrs["name"])
	_, hasFirst := attrs["first_name"]
	assert.False(t, hasFirst)
}
