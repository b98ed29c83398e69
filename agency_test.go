package agency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexstack/agency/engine"
)

func TestFacadeLifecycle(t *testing.T) {
	ctx := context.Background()

	ag := New(func(o *Options) {
		o.Agents = []engine.AgentSpec{
			{Name: "CEO", Instruction: "You run the agency."},
		}
	})

	require.False(t, ag.Running())
	require.NoError(t, ag.Start(ctx, ""))
	require.True(t, ag.Running())

	reply, err := ag.SendMessage(ctx, "0", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", reply)

	state, err := ag.AgentState(ctx, "0")
	require.NoError(t, err)
	assert.Len(t, state.MessageHistory, 2)

	name, err := ag.Stop(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, name)
	assert.False(t, ag.Running())

	names, err := ag.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, name)

	require.NoError(t, ag.Start(ctx, name))
	state, err = ag.AgentState(ctx, "0")
	require.NoError(t, err)
	assert.Len(t, state.MessageHistory, 2)
}

func TestFacadeCreateAgent(t *testing.T) {
	ctx := context.Background()

	ag := New()
	require.NoError(t, ag.Start(ctx, ""))
	defer ag.Stop(ctx)

	created, err := ag.CreateAgent(ctx, "Analyst", "You analyze data.")
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)

	state, err := ag.State(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Agents, 2)
}
