package rulesource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/internal/logger"
	"changeprop/pkg/models"
)

func TestReloadHandlerTriggersManagerReload(t *testing.T) {
	m := NewManager(stubSource{doc: sampleDoc()}, nil, logger.NopLogger())
	setter := &fakeSetter{}
	m.Register(setter)

	h := NewReloadHandler(m, logger.NopLogger())
	err := h.Handle(context.Background(), &models.Event{Meta: models.EventMeta{RequestID: "r1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, setter.calls)
}

func TestReloadHandlerPropagatesReloadError(t *testing.T) {
	m := NewManager(stubSource{err: errors.New("boom")}, nil, logger.NopLogger())
	h := NewReloadHandler(m, logger.NopLogger())

	err := h.Handle(context.Background(), &models.Event{})
	require.Error(t, err)
}
