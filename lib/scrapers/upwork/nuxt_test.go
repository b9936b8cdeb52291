package upwork

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestGraphDereference(t *testing.T) {
	g := &nuxtGraph{values: []any{
		"Job Title",
		"Python",
		"FastAPI",
		map[string]any{"title": float64(0), "skills": []any{float64(1), float64(2)}},
	}}

	resolved, ok := g.Deref(3)
	require.True(t, ok)

	expected := map[string]any{
		"title":  "Job Title",
		"skills": []any{"Python", "FastAPI"},
	}
	require.Empty(t, cmp.Diff(expected, resolved))
}

func TestGraphDereferenceNested(t *testing.T) {
	g := &nuxtGraph{values: []any{
		map[string]any{"job": float64(1)},
		map[string]any{"title": float64(2), "budget": float64(3)},
		"Go Developer",
		map[string]any{"amount": float64(4)},
		float64(750),
	}}

	resolved, ok := g.Deref(0)
	require.True(t, ok)

	expected := map[string]any{
		"job": map[string]any{
			"title":  "Go Developer",
			"budget": map[string]any{"amount": float64(750)},
		},
	}
	require.Empty(t, cmp.Diff(expected, resolved))
}

func TestGraphOutOfRangeReferenceYieldsAbsentField(t *testing.T) {
	g := &nuxtGraph{values: []any{
		map[string]any{"title": float64(1), "description": float64(99)},
		"Go Developer",
	}}

	resolved, ok := g.Deref(0)
	require.True(t, ok)

	fields, ok := resolved.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Go Developer", fields["title"])
	_, present := fields["description"]
	require.False(t, present)
}

func TestGraphCycleGuard(t *testing.T) {
	g := &nuxtGraph{values: []any{
		map[string]any{"self": float64(0), "title": float64(1)},
		"Go Developer",
	}}

	resolved, ok := g.Deref(0)
	require.True(t, ok)

	fields, ok := resolved.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Go Developer", fields["title"])
	_, present := fields["self"]
	require.False(t, present)
}

func TestGraphDepthCap(t *testing.T) {
	// a chain twice as deep as the cap, every link a fresh slot
	values := make([]any, 0, 80)
	for i := 0; i < 79; i++ {
		values = append(values, map[string]any{"next": float64(i + 1)})
	}
	values = append(values, "bottom")
	g := &nuxtGraph{values: values}

	resolved, ok := g.Deref(0)
	require.True(t, ok)
	require.IsType(t, map[string]any{}, resolved)
}
