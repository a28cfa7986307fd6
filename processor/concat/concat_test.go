package concat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/logstitch/component"
	"github.com/c360/logstitch/message"
	"github.com/c360/logstitch/stitch"
)

// capturedPublish records one publish call made by the processor.
type capturedPublish struct {
	Subject string
	Data    []byte
}

func testPorts() *component.PortConfig {
	return &component.PortConfig{
		Inputs: []component.PortDefinition{
			{Name: "nats_input", Type: "nats", Subject: "test.logs.raw", Interface: message.InterfaceBatch, Required: true},
		},
		Outputs: []component.PortDefinition{
			{Name: "nats_output", Type: "nats", Subject: "test.logs.merged", Interface: message.InterfaceRecord, Required: true},
			{Name: "timeout_output", Type: "nats", Subject: "test.logs.timeout", Interface: message.InterfaceRecord},
			{Name: "error_output", Type: "nats", Subject: "test.logs.error", Interface: message.InterfaceError},
		},
	}
}

// newTestProcessor builds a processor whose publishes are captured in memory.
func newTestProcessor(t *testing.T, config Config) (*Processor, *[]capturedPublish) {
	t.Helper()

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	discoverable, err := NewProcessor(rawConfig, component.Dependencies{})
	require.NoError(t, err)

	processor, ok := discoverable.(*Processor)
	require.True(t, ok)

	published := &[]capturedPublish{}
	processor.publish = func(_ context.Context, subject string, data []byte) error {
		*published = append(*published, capturedPublish{Subject: subject, Data: data})
		return nil
	}

	return processor, published
}

func TestConcatProcessor_Creation(t *testing.T) {
	config := Config{
		Ports: testPorts(),
		Concat: stitch.Config{
			Key:    "message",
			NLines: 3,
		},
	}

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	deps := component.Dependencies{
		NATSClient: nil, // Will be nil for creation test
	}

	processor, err := NewProcessor(rawConfig, deps)
	require.NoError(t, err)
	require.NotNil(t, processor)

	meta := processor.Meta()
	assert.Equal(t, "concat-processor", meta.Name)
	assert.Equal(t, "processor", meta.Type)
	assert.Contains(t, meta.Description, "logs.batch.v1")
}

func TestConcatProcessor_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NotNil(t, config.Ports)
	require.Len(t, config.Ports.Inputs, 1)
	require.Len(t, config.Ports.Outputs, 3)
	assert.Equal(t, "logs.raw.>", config.Ports.Inputs[0].Subject)
	assert.Equal(t, message.InterfaceBatch, config.Ports.Inputs[0].Interface)
	assert.Equal(t, "logs.merged", config.Ports.Outputs[0].Subject)
	assert.Equal(t, message.InterfaceRecord, config.Ports.Outputs[0].Interface)
}

func TestConcatProcessor_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "missing key",
			config: Config{
				Ports:  testPorts(),
				Concat: stitch.Config{NLines: 3},
			},
		},
		{
			name: "both modes configured",
			config: Config{
				Ports: testPorts(),
				Concat: stitch.Config{
					Key:                  "message",
					NLines:               3,
					MultilineStartRegexp: `^start`,
				},
			},
		},
		{
			name: "timeout_label without timeout_output",
			config: Config{
				Ports: &component.PortConfig{
					Inputs: []component.PortDefinition{
						{Name: "nats_input", Type: "nats", Subject: "test.logs.raw"},
					},
					Outputs: []component.PortDefinition{
						{Name: "nats_output", Type: "nats", Subject: "test.logs.merged"},
					},
				},
				Concat: stitch.Config{
					Key:          "message",
					NLines:       3,
					TimeoutLabel: "timeout.flush",
				},
			},
		},
		{
			name: "missing nats_output",
			config: Config{
				Ports: &component.PortConfig{
					Inputs: []component.PortDefinition{
						{Name: "nats_input", Type: "nats", Subject: "test.logs.raw"},
					},
				},
				Concat: stitch.Config{Key: "message", NLines: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rawConfig, err := json.Marshal(tt.config)
			require.NoError(t, err)

			_, err = NewProcessor(rawConfig, component.Dependencies{})
			assert.Error(t, err)
		})
	}
}

func TestConcatProcessor_InvalidJSON(t *testing.T) {
	_, err := NewProcessor(json.RawMessage(`{not json`), component.Dependencies{})
	assert.Error(t, err)
}

func TestConcatProcessor_HandleMessage_LineCount(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 3},
	})

	batch := message.NewBatch([]message.LogEvent{
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-1", "host": "a"}},
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-2", "host": "b"}},
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-3", "host": "c"}},
	})
	data, err := batch.Marshal()
	require.NoError(t, err)

	processor.handleMessage(context.Background(), data)

	require.Len(t, *published, 1)
	assert.Equal(t, "test.logs.merged", (*published)[0].Subject)

	var merged map[string]any
	require.NoError(t, json.Unmarshal((*published)[0].Data, &merged))
	assert.Equal(t, "line-1\nline-2\nline-3", merged["message"])
	// Non-key fields come from the last line
	assert.Equal(t, "c", merged["host"])
}

func TestConcatProcessor_HandleMessage_BuffersPartialGroup(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 3},
	})

	batch := message.NewBatch([]message.LogEvent{
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-1"}},
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-2"}},
	})
	data, err := batch.Marshal()
	require.NoError(t, err)

	processor.handleMessage(context.Background(), data)

	assert.Empty(t, *published)
	assert.Equal(t, 1, processor.engine.Store().Len())
}

func TestConcatProcessor_HandleMessage_EventError(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 2},
	})

	// Middle event has a nil record; the batch must keep going
	batch := message.NewBatch([]message.LogEvent{
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-1"}},
		{Tag: "app", Timestamp: time.Now(), Record: nil},
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-2"}},
	})
	data, err := batch.Marshal()
	require.NoError(t, err)

	processor.handleMessage(context.Background(), data)

	require.Len(t, *published, 2)

	assert.Equal(t, "test.logs.error", (*published)[0].Subject)
	var errEvent message.ErrorEvent
	require.NoError(t, json.Unmarshal((*published)[0].Data, &errEvent))
	assert.Equal(t, message.ErrorKindEvent, errEvent.Kind)
	assert.Equal(t, "app", errEvent.Tag)

	assert.Equal(t, "test.logs.merged", (*published)[1].Subject)
	var merged map[string]any
	require.NoError(t, json.Unmarshal((*published)[1].Data, &merged))
	assert.Equal(t, "line-1\nline-2", merged["message"])
}

func TestConcatProcessor_HandleMessage_BadEnvelope(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 2},
	})

	processor.handleMessage(context.Background(), []byte("not a batch"))

	assert.Empty(t, *published)
	assert.Equal(t, 1, processor.Health().ErrorCount)
}

func TestConcatProcessor_EmitTimeout_WithLabel(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports: testPorts(),
		Concat: stitch.Config{
			Key:          "message",
			NLines:       3,
			TimeoutLabel: "logs.stalled",
		},
	})

	processor.emitTimeout("app:default", stitch.Record{"message": "line-1\nline-2"})

	require.Len(t, *published, 1)
	assert.Equal(t, "test.logs.timeout", (*published)[0].Subject)

	var event message.LogEvent
	require.NoError(t, json.Unmarshal((*published)[0].Data, &event))
	assert.Equal(t, "logs.stalled", event.Tag)
	assert.Equal(t, "line-1\nline-2", event.Record["message"])
}

func TestConcatProcessor_EmitTimeout_WithoutLabel(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 3},
	})

	processor.emitTimeout("app:default", stitch.Record{"message": "line-1"})

	require.Len(t, *published, 1)
	assert.Equal(t, "test.logs.error", (*published)[0].Subject)

	var errEvent message.ErrorEvent
	require.NoError(t, json.Unmarshal((*published)[0].Data, &errEvent))
	assert.Equal(t, message.ErrorKindTimeout, errEvent.Kind)
	assert.Equal(t, "app:default", errEvent.Identity)
	assert.Equal(t, "line-1", errEvent.Record["message"])
}

func TestConcatProcessor_Stop_DrainsBuffers(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 5},
	})

	batch := message.NewBatch([]message.LogEvent{
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-1"}},
		{Tag: "app", Timestamp: time.Now(), Record: map[string]any{"message": "line-2"}},
	})
	data, err := batch.Marshal()
	require.NoError(t, err)
	processor.handleMessage(context.Background(), data)
	require.Empty(t, *published)

	// Never started through Start, so mark running for the drain path
	processor.mu.Lock()
	processor.running = true
	processor.mu.Unlock()

	require.NoError(t, processor.Stop(time.Second))

	require.Len(t, *published, 1)
	assert.Equal(t, "test.logs.error", (*published)[0].Subject)

	var errEvent message.ErrorEvent
	require.NoError(t, json.Unmarshal((*published)[0].Data, &errEvent))
	assert.Equal(t, message.ErrorKindTimeout, errEvent.Kind)
	assert.Equal(t, "line-1\nline-2", errEvent.Record["message"])

	assert.Equal(t, 0, processor.engine.Store().Len())
	assert.False(t, processor.Health().Healthy)
}

func TestConcatProcessor_StopWhenNotRunning(t *testing.T) {
	processor, published := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 5},
	})

	require.NoError(t, processor.Stop(time.Second))
	assert.Empty(t, *published)
}

func TestConcatProcessor_StartWithoutNATS(t *testing.T) {
	processor, _ := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 5},
	})

	err := processor.Start(context.Background())
	assert.Error(t, err)
}

func TestConcatProcessor_Lifecycle(t *testing.T) {
	config := Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 3},
	}

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	processor, err := NewProcessor(rawConfig, component.Dependencies{})
	require.NoError(t, err)

	lifecycleComp, ok := processor.(component.LifecycleComponent)
	require.True(t, ok)

	// Initialize should work without NATS
	assert.NoError(t, lifecycleComp.Initialize())

	// Health check (without starting)
	health := processor.Health()
	assert.False(t, health.Healthy)

	// Port definitions carry interface contracts
	inputPorts := processor.InputPorts()
	require.Len(t, inputPorts, 1)
	natsPort, ok := inputPorts[0].Config.(component.NATSPort)
	require.True(t, ok)
	require.NotNil(t, natsPort.Interface)
	assert.Equal(t, message.InterfaceBatch, natsPort.Interface.Type)

	outputPorts := processor.OutputPorts()
	require.Len(t, outputPorts, 3)
	outPort, ok := outputPorts[0].Config.(component.NATSPort)
	require.True(t, ok)
	require.NotNil(t, outPort.Interface)
	assert.Equal(t, message.InterfaceRecord, outPort.Interface.Type)
}

func TestConcatProcessor_ConfigSchema(t *testing.T) {
	processor, _ := newTestProcessor(t, Config{
		Ports:  testPorts(),
		Concat: stitch.Config{Key: "message", NLines: 3},
	})

	schema := processor.ConfigSchema()
	assert.Contains(t, schema.Properties, "concat.key")
	assert.Contains(t, schema.Required, "concat.key")
}
