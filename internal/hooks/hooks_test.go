package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventServerStart, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventServerStart, p.Event)
		return nil
	})

	m.Emit(context.Background(), EventServerStart, nil)
	assert.True(t, called)
}

func TestManager_Emit_MultipleHandlers(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventMessageStored, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventMessageStored, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventMessageStored, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_WithData(t *testing.T) {
	m := testManager()

	var gotData map[string]any
	m.On(EventMessageStored, "test", func(_ context.Context, p Payload) error {
		gotData = p.Data
		return nil
	})

	m.Emit(context.Background(), EventMessageStored, map[string]any{
		"conversation": "visitor:v1",
		"messageId":    "m1",
	})

	assert.Equal(t, "visitor:v1", gotData["conversation"])
	assert.Equal(t, "m1", gotData["messageId"])
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventServerStart, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventServerStart, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventServerStart, nil)
	assert.True(t, secondCalled)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	m.On(EventServerStop, "a", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventServerStop, "b", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 2, m.Count(EventServerStop))

	m.Off(EventServerStop, "a")
	assert.Equal(t, 1, m.Count(EventServerStop))
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var wg sync.WaitGroup
	wg.Add(2)
	m.On(EventClientConnected, "a", func(_ context.Context, _ Payload) error {
		wg.Done()
		return nil
	})
	m.On(EventClientConnected, "b", func(_ context.Context, _ Payload) error {
		wg.Done()
		return nil
	})

	m.EmitAsync(context.Background(), EventClientConnected, nil)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run")
	}
}

func TestManager_Events(t *testing.T) {
	m := testManager()
	assert.Empty(t, m.Events())

	m.On(EventServerStart, "a", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, []string{EventServerStart}, m.Events())
}

func TestRegisterShell_RunsCommand(t *testing.T) {
	m := testManager()
	log := logging.New(nil, "silent")

	marker := t.TempDir() + "/ran"
	RegisterShell(m, config.HooksConfig{
		MessageStored: []config.HookEntry{
			{Command: "touch " + marker},
		},
	}, log)

	require.Equal(t, 1, m.Count(EventMessageStored))
	m.Emit(context.Background(), EventMessageStored, map[string]any{"messageId": "m1"})

	assert.FileExists(t, marker)
}

func TestRegisterShell_SkipsEmptyCommands(t *testing.T) {
	m := testManager()

	RegisterShell(m, config.HooksConfig{
		ServerStart: []config.HookEntry{{Command: ""}},
	}, logging.New(nil, "silent"))

	assert.Equal(t, 0, m.Count(EventServerStart))
}

func TestShellHandler_Timeout(t *testing.T) {
	handler := shellHandler(config.HookEntry{Command: "sleep 5", Timeout: 50}, logging.New(nil, "silent"))

	start := time.Now()
	err := handler(context.Background(), Payload{Event: EventServerStart})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
