// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/internal/llm"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name string
		text string
		want func(*types.Strategy)
	}{
		{
			name: "no signal keeps defaults",
			text: "gather sources",
			want: func(*types.Strategy) {},
		},
		{
			name: "simple query",
			text: "A quick lookup is enough.",
			want: func(s *types.Strategy) {
				s.Complexity = types.ComplexitySimple
				s.MaxWebResults, s.MaxIndexResults = 3, 3
				s.VerificationDepth = types.DepthBasic
			},
		},
		{
			name: "complex query",
			text: "This needs a comprehensive review.",
			want: func(s *types.Strategy) {
				s.Complexity = types.ComplexityComplex
				s.MaxWebResults, s.MaxIndexResults = 8, 8
				s.VerificationDepth = types.DepthThorough
			},
		},
		{
			name: "simple wins over complex",
			text: "basic but detailed",
			want: func(s *types.Strategy) {
				s.Complexity = types.ComplexitySimple
				s.MaxWebResults, s.MaxIndexResults = 3, 3
				s.VerificationDepth = types.DepthBasic
			},
		},
		{
			name: "comparative",
			text: "Compare X and Y",
			want: func(s *types.Strategy) { s.QueryClass = types.ClassComparative },
		},
		{
			name: "comparative wins over analytical",
			text: "explain python versus go",
			want: func(s *types.Strategy) { s.QueryClass = types.ClassComparative },
		},
		{
			name: "analytical",
			text: "Why do stars collapse",
			want: func(s *types.Strategy) { s.QueryClass = types.ClassAnalytical },
		},
		{
			name: "factual",
			text: "Who invented radio",
			want: func(s *types.Strategy) { s.QueryClass = types.ClassFactual },
		},
		{
			name: "current events disable index",
			text: "latest developments",
			want: func(s *types.Strategy) { s.UseIndex = false },
		},
		{
			name: "documents win over current events",
			text: "recent uploaded PDF",
			want: func(s *types.Strategy) { s.UseIndex = true },
		},
		{
			name: "keywords must start a word",
			text: "canvas painting renews",
			want: func(*types.Strategy) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := types.DefaultStrategy()
			tt.want(&want)
			assert.Equal(t, want, ParseStrategy(tt.text))
		})
	}
}

func TestRouteUsesCompletionText(t *testing.T) {
	var gotUser string
	c := llm.CompleterFunc(func(_ context.Context, system, user string, temp float64) (string, error) {
		gotUser = user
		assert.Contains(t, system, "research strategy coordinator")
		assert.Equal(t, temperature, temp)
		return "This compares two languages and needs detailed analysis.", nil
	})

	d, err := New(c, nil).Route(context.Background(), "rust or go")
	require.NoError(t, err)
	assert.Equal(t, "Research query: rust or go", gotUser)
	assert.False(t, d.FromQuery)
	assert.Equal(t, types.ClassComparative, d.Strategy.QueryClass)
	assert.Equal(t, types.ComplexityComplex, d.Strategy.Complexity)
}

func TestRouteFallsBackToQueryText(t *testing.T) {
	c := llm.CompleterFunc(func(context.Context, string, string, float64) (string, error) {
		return "", types.Upstream("completion", errors.New("503"))
	})

	d, err := New(c, nil).Route(context.Background(), "Compare X and Y")
	require.NoError(t, err)
	assert.True(t, d.FromQuery)
	assert.Equal(t, types.ClassComparative, d.Strategy.QueryClass)
}

func TestRouteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := llm.CompleterFunc(func(ctx context.Context, _, _ string, _ float64) (string, error) {
		return "", ctx.Err()
	})
	_, err := New(c, nil).Route(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouteEmptyQuery(t *testing.T) {
	_, err := New(nil, nil).Route(context.Background(), "  ")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestRouteWithoutCompleter(t *testing.T) {
	d, err := New(nil, nil).Route(context.Background(), "what is the latest news")
	require.NoError(t, err)
	assert.True(t, d.FromQuery)
	assert.Equal(t, types.ClassFactual, d.Strategy.QueryClass)
	assert.False(t, d.Strategy.UseIndex)
}
