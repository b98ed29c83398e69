package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexstack/agency/agent"
	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/model"
	"github.com/cortexstack/agency/snapshot"
)

type parkedBackend struct {
	started chan struct{}
	release chan struct{}
}

func newParkedBackend() *parkedBackend {
	return &parkedBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *parkedBackend) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return model.Response{Parts: []core.Part{core.TextPart{Content: "done"}}}, nil
	case <-ctx.Done():
		return model.Response{}, ctx.Err()
	}
}

func (b *parkedBackend) Info() model.Info { return model.Info{Name: "parked", Provider: "test"} }

func newTestSupervisor(t *testing.T, backend model.Backend, optFns ...func(o *Options)) *Supervisor {
	t.Helper()
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	base := func(o *Options) {
		o.Agents = []AgentSpec{
			{Name: "CEO", Instruction: "You run the agency."},
			{Name: "Analyst", Instruction: "You analyze."},
		}
	}
	return New(backend, store, append([]func(o *Options){base}, optFns...)...)
}

func TestStartAssignsSequentialIDs(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"))
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))
	assert.True(t, sup.Running())

	state, err := sup.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.Agents, 2)
	assert.Equal(t, "0", state.Agents[0].ID)
	assert.Equal(t, "CEO", state.Agents[0].Name)
	assert.Equal(t, "1", state.Agents[1].ID)
	assert.Empty(t, state.Agents[0].MessageHistory)
}

func TestStartTwice(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"))
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))
	assert.ErrorIs(t, sup.Start(ctx, ""), core.ErrAlreadyRunning)
}

func TestOperationsWhenStopped(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"))
	ctx := context.Background()

	_, err := sup.Stop(ctx)
	assert.ErrorIs(t, err, core.ErrNotRunning)

	_, err = sup.State(ctx)
	assert.ErrorIs(t, err, core.ErrNotRunning)

	_, err = sup.Dispatch(ctx, "0", "hello")
	assert.ErrorIs(t, err, core.ErrNotRunning)

	_, err = sup.CreateAgent(ctx, "Extra", "You help.")
	assert.ErrorIs(t, err, core.ErrNotRunning)
}

func TestDispatchUnknownAgent(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"))
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	_, err := sup.Dispatch(ctx, "99", "hello")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDispatchRecordsHistory(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueText("on it")
	sup := newTestSupervisor(t, backend)
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	reply, err := sup.Dispatch(ctx, "0", "write a report")
	require.NoError(t, err)
	assert.Equal(t, "on it", reply)

	as, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	require.Len(t, as.MessageHistory, 2)

	other, err := sup.AgentState(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, other.MessageHistory, "dispatch touches only the addressed agent")
}

func TestStopSnapshotAndResume(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueText("draft ready")
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sup := New(backend, store, func(o *Options) {
		o.Agents = []AgentSpec{{Name: "CEO", Instruction: "You run the agency."}}
	})
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))
	_, err = sup.Dispatch(ctx, "0", "draft the plan")
	require.NoError(t, err)

	name, err := sup.Stop(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, name)
	assert.False(t, sup.Running())

	names, err := sup.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	require.NoError(t, sup.Start(ctx, name))
	as, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	require.Len(t, as.MessageHistory, 2)
	assert.Equal(t, "draft the plan", as.MessageHistory[0].Text())

	// New ids continue past the restored roster.
	created, err := sup.CreateAgent(ctx, "Analyst", "You analyze.")
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)
}

func TestStartUnknownSnapshot(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"))

	err := sup.Start(context.Background(), "missing.json")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, sup.Running())
}

func TestCreateAgentAssignsNextID(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"))
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	created, err := sup.CreateAgent(ctx, "Writer", "You write.")
	require.NoError(t, err)
	assert.Equal(t, "2", created.ID)
	assert.Empty(t, created.MessageHistory)

	state, err := sup.State(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Agents, 3)
}

func TestStopInterruptsProcessingAgent(t *testing.T) {
	backend := newParkedBackend()
	sup := newTestSupervisor(t, backend)
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	errCh := make(chan error, 1)
	go func() {
		_, err := sup.Dispatch(ctx, "0", "long task")
		errCh <- err
	}()
	<-backend.started

	status, err := sup.AgentStatus(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusProcessing, status)

	name, err := sup.Stop(ctx)
	require.NoError(t, err)
	require.Error(t, <-errCh)

	// The snapshot contains the interrupted turn's closing message.
	state, err := sup.LoadSnapshot(ctx, name)
	require.NoError(t, err)
	hist := state.Agents[0].MessageHistory
	require.Len(t, hist, 2)
	assert.Equal(t, core.MessageKindAssistant, hist[1].Kind)
}

func TestCallbacksFire(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueText("ok")

	var seen []CallbackType
	callbacks := NewCallbackManager()
	for _, ct := range []CallbackType{CallbackOnStart, CallbackOnStop, CallbackBeforeDispatch, CallbackAfterDispatch} {
		ct := ct
		callbacks.Register(NewFunctionCallback(ct, func(ctx context.Context, cc *CallbackContext) {
			seen = append(seen, ct)
		}))
	}

	sup := newTestSupervisor(t, backend, func(o *Options) {
		o.Callbacks = callbacks
	})
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))
	_, err := sup.Dispatch(ctx, "0", "hi")
	require.NoError(t, err)
	_, err = sup.Stop(ctx)
	require.NoError(t, err)

	assert.Equal(t, []CallbackType{CallbackOnStart, CallbackBeforeDispatch, CallbackAfterDispatch, CallbackOnStop}, seen)
}

func TestInstructionTemplating(t *testing.T) {
	sup := newTestSupervisor(t, model.NewMockBackend("test-model"), func(o *Options) {
		o.Agents = []AgentSpec{
			{Name: "CEO", Instruction: "You are {{.name}}, agent {{.id}} of the agency."},
		}
	})
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))

	state, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "You are CEO, agent 0 of the agency.", state.Instruction)

	created, err := sup.CreateAgent(ctx, "Analyst", "Report as {{.name}} ({{.id}}).")
	require.NoError(t, err)
	assert.Equal(t, "Report as Analyst (1).", created.Instruction)
}

// faultyStore fails Save a set number of times, then delegates.
type faultyStore struct {
	snapshot.Store
	failures int
}

func (f *faultyStore) Save(ctx context.Context, state core.AgencyState) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("disk full")
	}
	return f.Store.Save(ctx, state)
}

func TestStopSaveFailureKeepsAgencyReachable(t *testing.T) {
	store := &faultyStore{Store: snapshot.NewMemoryStore(), failures: 1}
	sup := New(model.NewMockBackend("test-model"), store, func(o *Options) {
		o.Agents = []AgentSpec{{Name: "CEO", Instruction: "You run the agency."}}
	})
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))
	_, err := sup.Dispatch(ctx, "0", "hello")
	require.NoError(t, err)

	_, err = sup.Stop(ctx)
	require.ErrorContains(t, err, "disk full")

	// The agency survives the failed save: history is still served.
	assert.True(t, sup.Running())
	state, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	assert.Len(t, state.MessageHistory, 2)

	// A retried Stop succeeds and the snapshot holds the full history.
	name, err := sup.Stop(ctx)
	require.NoError(t, err)
	saved, err := sup.LoadSnapshot(ctx, name)
	require.NoError(t, err)
	require.Len(t, saved.Agents, 1)
	assert.Len(t, saved.Agents[0].MessageHistory, 2)
	assert.False(t, sup.Running())
}

func TestStartEmptyRosterFallsBack(t *testing.T) {
	sup := New(model.NewMockBackend("test-model"), snapshot.NewMemoryStore(), func(o *Options) {
		o.Agents = []AgentSpec{}
	})
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, ""))
	state, err := sup.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.Agents, 1)
	assert.Equal(t, "Assistant", state.Agents[0].Name)
}

func TestAgentMessagesAgentViaTool(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueToolCalls(core.ToolCallPart{
		ToolName:   "message_agent",
		ToolCallID: "c1",
		Args:       json.RawMessage(`{"agent_id":"1","message":"status report please"}`),
	})
	backend.QueueText("On it, boss.")
	backend.QueueText("Analyst reported in.")

	sup := newTestSupervisor(t, backend)
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	reply, err := sup.Dispatch(ctx, "0", "Check on the analyst.")
	require.NoError(t, err)
	assert.Equal(t, "Analyst reported in.", reply)

	// The callee recorded a full turn of its own.
	analyst, err := sup.AgentState(ctx, "1")
	require.NoError(t, err)
	require.Len(t, analyst.MessageHistory, 2)
	assert.Equal(t, "status report please", analyst.MessageHistory[0].Text())

	// The caller's tool return carries the analyst's reply.
	ceo, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	require.Len(t, ceo.MessageHistory, 4)
	returns := ceo.MessageHistory[2].ToolReturns()
	require.Len(t, returns, 1)
	assert.False(t, returns[0].IsError)
	assert.Contains(t, returns[0].Content, "On it, boss.")
}

func TestAgentMessagingItselfGetsErrorReturn(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueToolCalls(core.ToolCallPart{
		ToolName:   "message_agent",
		ToolCallID: "c1",
		Args:       json.RawMessage(`{"agent_id":"0","message":"hello me"}`),
	})
	backend.QueueText("That went nowhere.")

	sup := newTestSupervisor(t, backend)
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	reply, err := sup.Dispatch(ctx, "0", "Talk to yourself.")
	require.NoError(t, err)
	assert.Equal(t, "That went nowhere.", reply)

	ceo, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	require.Len(t, ceo.MessageHistory, 4)
	returns := ceo.MessageHistory[2].ToolReturns()
	require.Len(t, returns, 1)
	assert.True(t, returns[0].IsError)
}

func TestAgentCreatesAgentViaTool(t *testing.T) {
	backend := model.NewMockBackend("test-model")
	backend.QueueToolCalls(core.ToolCallPart{
		ToolName:   "create_agent",
		ToolCallID: "c1",
		Args:       json.RawMessage(`{"name":"Writer","instruction":"You draft reports."}`),
	})
	backend.QueueText("Hired a writer.")

	sup := newTestSupervisor(t, backend)
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, ""))

	reply, err := sup.Dispatch(ctx, "0", "We need a writer.")
	require.NoError(t, err)
	assert.Equal(t, "Hired a writer.", reply)

	created, err := sup.AgentState(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Writer", created.Name)

	ceo, err := sup.AgentState(ctx, "0")
	require.NoError(t, err)
	returns := ceo.MessageHistory[2].ToolReturns()
	require.Len(t, returns, 1)
	assert.Contains(t, returns[0].Content, `"agent_id":"2"`)
}
