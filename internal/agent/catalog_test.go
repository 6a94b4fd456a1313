package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_MatchesHandlers(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, len(handlers), "every catalog entry needs a handler and vice versa")

	for _, tool := range catalog {
		require.NotNil(t, tool.Function)
		_, ok := handlers[ToolName(tool.Function.Name)]
		assert.True(t, ok, "no handler for catalog tool %q", tool.Function.Name)
	}
}

func TestCatalog_Order(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, len(toolNames))

	for i, name := range toolNames {
		assert.Equal(t, string(name), catalog[i].Function.Name)
	}
}

func TestCatalog_RequiredFields(t *testing.T) {
	want := map[string][]string{
		"list_events":  {"start", "end"},
		"create_event": {"summary", "start", "end"},
		"update_event": {},
		"delete_event": {},
	}

	for _, tool := range Catalog() {
		params, ok := tool.Function.Parameters.(map[string]any)
		require.True(t, ok, "parameters of %q must be a schema object", tool.Function.Name)

		required, ok := params["required"].([]string)
		require.True(t, ok, "required of %q must be a string slice", tool.Function.Name)
		assert.Equal(t, want[tool.Function.Name], required)
	}
}

func TestCatalog_SchemaShape(t *testing.T) {
	for _, tool := range Catalog() {
		assert.Equal(t, "function", tool.Type)
		assert.NotEmpty(t, tool.Function.Description)

		params := tool.Function.Parameters.(map[string]any)
		assert.Equal(t, "object", params["type"])
		assert.Equal(t, false, params["additionalProperties"])

		properties, ok := params["properties"].(map[string]any)
		require.True(t, ok)
		assert.NotEmpty(t, properties)

		// Every declared required field must exist in properties.
		for _, field := range params["required"].([]string) {
			_, ok := properties[field]
			assert.True(t, ok, "tool %q requires undeclared field %q", tool.Function.Name, field)
		}

		// All tools accept an optional calendar_id.
		_, ok = properties["calendar_id"]
		assert.True(t, ok, "tool %q is missing calendar_id", tool.Function.Name)
	}
}
