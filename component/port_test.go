package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPortFromDefinition_NATS(t *testing.T) {
	def := PortDefinition{
		Name:      "nats_input",
		Type:      "nats",
		Subject:   "logs.raw.>",
		Interface: "logs.batch.v1",
		Required:  true,
	}

	port := BuildPortFromDefinition(def, DirectionInput)

	assert.Equal(t, "nats_input", port.Name)
	assert.Equal(t, DirectionInput, port.Direction)
	assert.True(t, port.Required)

	natsPort, ok := port.Config.(NATSPort)
	require.True(t, ok)
	assert.Equal(t, "logs.raw.>", natsPort.Subject)
	require.NotNil(t, natsPort.Interface)
	assert.Equal(t, "logs.batch.v1", natsPort.Interface.Type)
	assert.Equal(t, "nats:logs.raw.>", natsPort.ResourceID())
	assert.Equal(t, "nats", natsPort.Type())
}

func TestBuildPortFromDefinition_JetStream(t *testing.T) {
	def := PortDefinition{
		Name:       "stream_output",
		Type:       "jetstream",
		Subject:    "logs.merged",
		StreamName: "LOGS",
	}

	port := BuildPortFromDefinition(def, DirectionOutput)

	jsPort, ok := port.Config.(JetStreamPort)
	require.True(t, ok)
	assert.Equal(t, "LOGS", jsPort.StreamName)
	assert.Equal(t, []string{"logs.merged"}, jsPort.Subjects)
	assert.Equal(t, "jetstream:LOGS", jsPort.ResourceID())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "created"},
		{StateInitialized, "initialized"},
		{StateStarted, "started"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.state.String())
	}
}
