package roster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreservesOrder(t *testing.T) {
	specs := []AgentSpec{
		{Name: "zeta", Model: "m1"},
		{Name: "alpha", Model: "m2"},
		{Name: "mid", Model: "m1"},
	}
	r, err := New(specs)
	require.NoError(t, err)
	assert.Equal(t, specs, r.Agents())
	assert.Equal(t, 3, r.Len())

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "m2", got.Model)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]AgentSpec{
		{Name: "core", Model: "a"},
		{Name: "loop", Model: "b"},
		{Name: "core", Model: "c"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), `"core"`)
}

func TestNewRejectsIncompleteEntries(t *testing.T) {
	tests := []struct {
		name  string
		specs []AgentSpec
	}{
		{"empty roster", nil},
		{"missing name", []AgentSpec{{Model: "m"}}},
		{"missing model", []AgentSpec{{Name: "core"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.specs)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestAgentsReturnsCopy(t *testing.T) {
	r := Default()
	agents := r.Agents()
	agents[0].Name = "mutated"

	first, _ := r.Get("core")
	assert.Equal(t, "core", first.Name)
	assert.Equal(t, "core", r.Agents()[0].Name)
}

func TestDefaultCrew(t *testing.T) {
	r := Default()
	names := make([]string, 0, r.Len())
	for _, a := range r.Agents() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"core", "loop", "wave", "coin", "code"}, names)
}
