package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGroupsByTopicInDeclarationOrder(t *testing.T) {
	r1, err := Compile(Spec{Name: "first", Topic: "page-changes"}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)
	r2, err := Compile(Spec{Name: "second", Topic: "page-changes"}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)
	r3, err := Compile(Spec{Name: "third", Topic: "other-topic"}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)

	reg := Build([]*Rule{r1, r2, r3})

	rules := reg.RulesForTopic("page-changes")
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, "second", rules[1].Name)

	assert.Len(t, reg.RulesForTopic("other-topic"), 1)
	assert.Equal(t, 3, reg.Size())
}

func TestRegistryLookupByName(t *testing.T) {
	r1, err := Compile(Spec{Name: "update_wiki_page", Topic: "page-changes"}, noopEvaluator{}, newPlaceholderTemplate)
	require.NoError(t, err)

	reg := Build([]*Rule{r1})

	found, ok := reg.Lookup("update_wiki_page")
	require.True(t, ok)
	assert.Same(t, r1, found)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryDerivesTopicNames(t *testing.T) {
	reg := Build(nil)
	assert.Equal(t, "change-prop.retry.update_wiki_page", reg.RetryTopic("update_wiki_page"))
	assert.Equal(t, "change-prop.error", reg.ErrorTopic())
}
