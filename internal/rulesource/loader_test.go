package rulesource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/pkg/rule"
)

func sampleDoc() rule.Document {
	return rule.Document{
		Rules: []rule.Spec{
			{
				Name:  "purge-on-delete",
				Topic: "change-prop.wikipedia",
				Match: map[string]interface{}{"meta": map[string]interface{}{"uri": "/wiki/Foo"}},
				Exec: []rule.ExecSpec{
					{Method: "POST", URI: "https://cache.example/purge"},
				},
			},
		},
	}
}

func TestBuildCompilesDocumentIntoRegistry(t *testing.T) {
	reg, err := Build(sampleDoc(), nil)
	require.NoError(t, err)
	require.NotNil(t, reg)

	assert.Equal(t, 1, reg.Size())
	assert.Contains(t, reg.Topics(), "change-prop.wikipedia")

	_, ok := reg.Lookup("purge-on-delete")
	assert.True(t, ok)
}

func TestBuildSurfacesCompileErrors(t *testing.T) {
	doc := rule.Document{Rules: []rule.Spec{{Name: "", Topic: "x"}}}
	_, err := Build(doc, nil)
	require.Error(t, err)
}

func TestNewTemplateForCarriesDecodeResultsFromRuleSpec(t *testing.T) {
	spec := rule.Spec{Name: "r", Topic: "t", DecodeResults: true}
	newTemplate := newTemplateFor(spec)

	tpl := newTemplate(rule.ExecSpec{Method: "GET", URI: "https://example/x"})
	req, err := tpl.Render(map[string]interface{}{}, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, req.DecodeResults)
}
