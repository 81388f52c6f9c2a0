package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/pkg/match"
)

func TestPlaceholderTemplateRendersURIAndBody(t *testing.T) {
	tpl := New(Spec{
		Method:  "POST",
		URI:     "http://mock.com/{{meta.domain}}",
		Headers: map[string]string{"x-request-id": "{{meta.request_id}}"},
		Body: map[string]interface{}{
			"test_field_name": "test_field_value",
			"derived_field":   "{{message}}",
		},
	})

	event := map[string]interface{}{
		"message": "test",
		"meta": map[string]interface{}{
			"domain":     "en.wikipedia.org",
			"request_id": "abc-123",
		},
	}

	req, err := tpl.Render(event, match.Bindings{})
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http://mock.com/en.wikipedia.org", req.URI)
	assert.Equal(t, "abc-123", req.Headers["x-request-id"])
	assert.False(t, req.FollowRedirect)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "test_field_value", body["test_field_name"])
	assert.Equal(t, "test", body["derived_field"])
}

func TestPlaceholderPrefersBindingsOverEvent(t *testing.T) {
	tpl := New(Spec{URI: "http://mock.com/{{page}}"})

	event := map[string]interface{}{"page": "event-value"}
	bindings := match.Bindings{"page": "binding-value"}

	req, err := tpl.Render(event, bindings)
	require.NoError(t, err)
	assert.Equal(t, "http://mock.com/binding-value", req.URI)
}

func TestDefaultsMethodAndHeaders(t *testing.T) {
	tpl := New(Spec{URI: "http://mock.com/"})
	req, err := tpl.Render(map[string]interface{}{}, match.Bindings{})
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.NotNil(t, req.Headers)
}
