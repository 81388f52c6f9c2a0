package rulesource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/internal/logger"
	"changeprop/pkg/rule"
)

type stubSource struct {
	doc rule.Document
	err error
}

func (s stubSource) Load(ctx context.Context) (rule.Document, error) {
	return s.doc, s.err
}

type fakeSetter struct {
	registry *rule.Registry
	calls    int
}

func (f *fakeSetter) SetRegistry(reg *rule.Registry) {
	f.registry = reg
	f.calls++
}

func TestManagerReloadBuildsAndDistributesRegistry(t *testing.T) {
	m := NewManager(stubSource{doc: sampleDoc()}, nil, logger.NopLogger())
	setterA := &fakeSetter{}
	setterB := &fakeSetter{}
	m.Register(setterA)
	m.Register(setterB)

	require.NoError(t, m.Reload(context.Background()))

	require.NotNil(t, setterA.registry)
	require.NotNil(t, setterB.registry)
	assert.Equal(t, 1, setterA.calls)
	assert.Equal(t, 1, setterB.calls)
	assert.Equal(t, setterA.registry, setterB.registry)
}

func TestManagerReloadLeavesSettersUntouchedOnLoadError(t *testing.T) {
	m := NewManager(stubSource{err: errors.New("boom")}, nil, logger.NopLogger())
	setter := &fakeSetter{}
	m.Register(setter)

	err := m.Reload(context.Background())
	require.Error(t, err)
	assert.Nil(t, setter.registry)
	assert.Equal(t, 0, setter.calls)
}

func TestManagerReloadLeavesSettersUntouchedOnCompileError(t *testing.T) {
	badDoc := rule.Document{Rules: []rule.Spec{{Name: "", Topic: "x"}}}
	m := NewManager(stubSource{doc: badDoc}, nil, logger.NopLogger())
	setter := &fakeSetter{}
	m.Register(setter)

	err := m.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, setter.calls)
}
