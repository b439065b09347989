package diagnostics

import (
	"context"
	"testing"

	processor "github.com/goliatone/go-processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.FailIn = "nowhere"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, processor.ErrCodeInvalidConfig, processor.ErrorCode(err))

	cfg = DefaultConfig()
	cfg.NumberOfItems = -1
	assert.Error(t, cfg.Validate())
}

func TestConfig_PlanAssignsCategoriesInOrder(t *testing.T) {
	cfg := Config{
		NumberOfItems: 6,
		Categories: []CategoryConfig{
			{Name: "new", IsSuccessful: true, Count: 2},
			{Name: "invalid", IsSuccessful: false, Count: 1},
		},
	}

	assert.Equal(t, "new", cfg.plan(0).Category)
	assert.True(t, cfg.plan(1).IsSuccessful)
	assert.Equal(t, "invalid", cfg.plan(2).Category)
	assert.False(t, cfg.plan(2).IsSuccessful)
	assert.Equal(t, processor.Success(), cfg.plan(3))
}

func TestProcessor_FailsInConfiguredStage(t *testing.T) {
	ctx := context.Background()
	p := New(Config{NumberOfItems: 2, FailIn: processor.StageCursorRead})

	seq, err := p.Items(ctx)
	require.NoError(t, err)
	cur, err := seq.Cursor(ctx)
	require.NoError(t, err)

	more, err := cur.Next(ctx)
	require.NoError(t, err)
	require.True(t, more)

	_, err = cur.Current()
	var diagErr *DiagnosticError
	require.ErrorAs(t, err, &diagErr)
	assert.Equal(t, processor.StageCursorRead, diagErr.Stage)
}

func TestProcessor_CursorEnumeratesAllItems(t *testing.T) {
	ctx := context.Background()
	p := New(Config{NumberOfItems: 3, CanCountItems: true})

	seq, err := p.Items(ctx)
	require.NoError(t, err)
	counter, ok := seq.(processor.Counter)
	require.True(t, ok)
	assert.True(t, counter.CanCount())

	cur, err := seq.Cursor(ctx)
	require.NoError(t, err)

	var items []int
	for {
		more, err := cur.Next(ctx)
		require.NoError(t, err)
		if !more {
			break
		}
		item, err := cur.Current()
		require.NoError(t, err)
		items = append(items, item)
	}
	assert.Equal(t, []int{0, 1, 2}, items)

	id, err := p.ItemID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "item-2", id)
}
