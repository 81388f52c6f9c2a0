package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/pkg/models"
)

func TestLogNoOpWithoutDB(t *testing.T) {
	l := New(nil)
	err := l.Log(context.Background(), Entry{RuleName: "r1", Reason: "retry_exhausted"})
	require.NoError(t, err)
}

func TestFromErrorEnvelope(t *testing.T) {
	env := models.ErrorEnvelope{
		RuleName:    "update_wiki_page",
		TriggeredBy: "update_wiki_page:/wiki/Foo",
		Reason:      "retry_exhausted",
		Status:      503,
		Event:       models.Event{Meta: models.EventMeta{URI: "/wiki/Foo", RequestID: "req-1"}},
		OccurredAt:  time.Now(),
	}

	entry := FromErrorEnvelope(env)
	assert.Equal(t, "update_wiki_page", entry.RuleName)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "/wiki/Foo", entry.URI)
	assert.Equal(t, 503, entry.Status)
}
