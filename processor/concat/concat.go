// Package concat provides the processor component that rejoins multiline log
// records delivered as separate events.
package concat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/logstitch/component"
	"github.com/c360/logstitch/errors"
	"github.com/c360/logstitch/message"
	"github.com/c360/logstitch/natsclient"
	"github.com/c360/logstitch/stitch"
)

// Port names the processor resolves from its port configuration.
const (
	portInput   = "nats_input"
	portOutput  = "nats_output"
	portTimeout = "timeout_output"
	portError   = "error_output"
)

// Config holds configuration for the concat processor.
type Config struct {
	Ports  *component.PortConfig `json:"ports"`
	Concat stitch.Config         `json:"concat"`
}

// DefaultConfig returns the default port layout for the concat processor.
// The aggregation settings carry no usable default: key and a matching mode
// must always be configured.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        portInput,
			Type:        "nats",
			Subject:     "logs.raw.>",
			Interface:   message.InterfaceBatch,
			Required:    true,
			Description: "NATS subjects delivering ordered log event batches",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        portOutput,
			Type:        "nats",
			Subject:     "logs.merged",
			Interface:   message.InterfaceRecord,
			Required:    true,
			Description: "NATS subject for merged records",
		},
		{
			Name:        portTimeout,
			Type:        "nats",
			Subject:     "logs.timeout",
			Interface:   message.InterfaceRecord,
			Description: "NATS subject for timeout-flushed records when timeout_label is set",
		},
		{
			Name:        portError,
			Type:        "nats",
			Subject:     "logs.error",
			Interface:   message.InterfaceError,
			Description: "NATS subject for failed events and unlabeled timeout flushes",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
	}
}

// concatSchema defines the configuration schema for the concat processor.
var concatSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"ports": {
			Type:        "ports",
			Description: "Port configuration",
		},
		"concat.key": {
			Type:        "string",
			Description: "Record field whose values are concatenated",
		},
		"concat.separator": {
			Type:        "string",
			Description: "String joining buffered field values",
			Default:     stitch.DefaultSeparator,
		},
		"concat.n_lines": {
			Type:        "int",
			Description: "Flush a stream once its buffer holds this many lines",
		},
		"concat.multiline_start_regexp": {
			Type:        "string",
			Description: "Pattern matching the first line of a group",
		},
		"concat.multiline_end_regexp": {
			Type:        "string",
			Description: "Pattern matching the last line of a group",
		},
		"concat.stream_identity_key": {
			Type:        "string",
			Description: "Record field partitioning buffering state beyond the tag",
		},
		"concat.flush_interval": {
			Type:        "int",
			Description: "Seconds a stream may sit idle before a forced flush",
			Default:     60,
		},
		"concat.timeout_label": {
			Type:        "string",
			Description: "Tag applied to timeout-flushed records routed to timeout_output",
		},
	},
	Required: []string{"ports", "concat.key"},
}

type publishFunc func(ctx context.Context, subject string, data []byte) error

// Processor rejoins multiline log records split across delivery events.
// Batches are handled one at a time so per-stream event order is preserved.
type Processor struct {
	name           string
	inputSubjects  []string
	outputSubject  string
	timeoutSubject string
	errorSubject   string
	ports          *component.PortConfig

	cfg     stitch.Config
	engine  *stitch.Engine
	sweeper *stitch.Sweeper

	natsClient *natsclient.Client
	publish    publishFunc
	logger     *slog.Logger

	// Lifecycle management
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	// Serializes batch handling; ordering within a stream depends on it
	processMu sync.Mutex

	// Atomic counters for DataFlow
	eventsProcessed int64
	recordsMerged   int64
	errCount        int64
	lastActivity    time.Time

	// Prometheus metrics
	metrics *concatMetrics
}

// NewProcessor creates a concat processor from raw JSON configuration.
func NewProcessor(
	rawConfig json.RawMessage, deps component.Dependencies,
) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, errors.WrapInvalid(err, "ConcatProcessor", "NewProcessor", "config unmarshal")
	}

	if config.Ports == nil {
		config.Ports = DefaultConfig().Ports
	}

	engine, err := stitch.NewEngine(config.Concat)
	if err != nil {
		return nil, errors.WrapFatal(err, "ConcatProcessor", "NewProcessor", "build engine")
	}

	var inputSubjects []string
	for _, input := range config.Ports.Inputs {
		if input.Type == "nats" || input.Type == "" {
			inputSubjects = append(inputSubjects, input.Subject)
		}
	}
	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "ConcatProcessor", "NewProcessor",
			"no input subjects configured")
	}

	outputSubject := outputSubjectByName(config.Ports, portOutput)
	if outputSubject == "" {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "ConcatProcessor", "NewProcessor",
			"nats_output port is required")
	}

	timeoutSubject := outputSubjectByName(config.Ports, portTimeout)
	if config.Concat.TimeoutLabel != "" && timeoutSubject == "" {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "ConcatProcessor", "NewProcessor",
			"timeout_label requires a timeout_output port")
	}

	metrics, err := newConcatMetrics(deps.MetricsRegistry, "concat-processor")
	if err != nil {
		deps.GetLogger().Error("Failed to initialize concat metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	p := &Processor{
		name:           "concat-processor",
		inputSubjects:  inputSubjects,
		outputSubject:  outputSubject,
		timeoutSubject: timeoutSubject,
		errorSubject:   outputSubjectByName(config.Ports, portError),
		ports:          config.Ports,
		cfg:            config.Concat,
		engine:         engine,
		natsClient:     deps.NATSClient,
		logger:         deps.GetLogger(),
		metrics:        metrics,
	}

	p.publish = func(ctx context.Context, subject string, data []byte) error {
		if p.natsClient == nil {
			return errors.WrapTransient(errors.ErrNoConnection, "ConcatProcessor", "publish", "NATS client not configured")
		}
		return p.natsClient.Publish(ctx, subject, data)
	}

	p.sweeper = stitch.NewSweeper(
		engine.Store(),
		config.Concat.FlushInterval(),
		p.emitTimeout,
		stitch.WithSweeperLogger(p.logger),
	)

	return p, nil
}

// outputSubjectByName resolves a named output port to its NATS subject.
func outputSubjectByName(ports *component.PortConfig, name string) string {
	for _, output := range ports.Outputs {
		if output.Name == name && (output.Type == "nats" || output.Type == "") {
			return output.Subject
		}
	}
	return ""
}

// Initialize prepares the processor (no-op for concat)
func (p *Processor) Initialize() error {
	return nil
}

// Start subscribes to the input subjects and starts the timeout sweeper.
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "ConcatProcessor", "Start", "check running state")
	}

	if p.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "ConcatProcessor", "Start", "NATS client required")
	}

	if err := p.sweeper.Start(ctx); err != nil {
		return errors.WrapTransient(err, "ConcatProcessor", "Start", "start sweeper")
	}

	for _, subject := range p.inputSubjects {
		p.logger.Debug("Subscribing to NATS subject",
			"component", p.name,
			"subject", subject)

		if err := p.natsClient.Subscribe(ctx, subject, p.handleMessage); err != nil {
			p.logger.Error("Failed to subscribe to NATS subject",
				"component", p.name,
				"subject", subject,
				"error", err)
			return errors.WrapTransient(err, "ConcatProcessor", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	p.mu.Lock()
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("Concat processor started",
		"component", p.name,
		"input_subjects", p.inputSubjects,
		"output_subject", p.outputSubject,
		"mode", p.cfg.Mode().String(),
		"flush_interval", p.cfg.FlushInterval())

	return nil
}

// Stop stops the sweeper, then drains every remaining buffer through the
// timeout path so no accumulated lines are lost on shutdown.
func (p *Processor) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running {
		return nil
	}

	if err := p.sweeper.Stop(timeout); err != nil {
		p.logger.Error("Sweeper did not stop cleanly",
			"component", p.name,
			"error", err)
	}

	// Serialize against in-flight batches, then drain
	p.processMu.Lock()
	groups := p.engine.Store().FlushAll()
	p.processMu.Unlock()

	for _, group := range groups {
		p.emitTimeout(group.Identity, group.Record)
	}
	if len(groups) > 0 {
		p.logger.Info("Drained buffered streams on shutdown",
			"component", p.name,
			"streams", len(groups))
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// handleMessage processes one incoming batch envelope. Events are fed to the
// engine in arrival order; a bad event is reported on the error path without
// halting the rest of the batch.
func (p *Processor) handleMessage(ctx context.Context, msgData []byte) {
	p.processMu.Lock()
	defer p.processMu.Unlock()

	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()

	batch, err := message.ParseBatch(msgData)
	if err != nil {
		atomic.AddInt64(&p.errCount, 1)
		p.metrics.recordError(p.name, "parse")
		p.logger.Debug("Failed to parse batch envelope",
			"component", p.name,
			"error", err)
		return
	}

	for _, event := range batch.Events {
		atomic.AddInt64(&p.eventsProcessed, 1)

		start := time.Now()
		merged, ok, err := p.engine.Process(event.Tag, event.Timestamp, stitch.Record(event.Record))
		p.metrics.recordEvent(p.name, ok, time.Since(start))

		if err != nil {
			atomic.AddInt64(&p.errCount, 1)
			p.metrics.recordError(p.name, "event")
			p.publishError(ctx, message.NewEventError(event, err))
			continue
		}
		if !ok {
			continue
		}

		p.publishMerged(ctx, merged)
	}

	p.metrics.setBufferedStreams(p.engine.Store().Len())
}

// publishMerged sends a naturally completed record to the output subject.
func (p *Processor) publishMerged(ctx context.Context, record stitch.Record) {
	data, err := json.Marshal(record)
	if err != nil {
		atomic.AddInt64(&p.errCount, 1)
		p.metrics.recordError(p.name, "marshal")
		p.logger.Error("Failed to encode merged record",
			"component", p.name,
			"error", err)
		return
	}

	if err := p.publish(ctx, p.outputSubject, data); err != nil {
		atomic.AddInt64(&p.errCount, 1)
		p.metrics.recordError(p.name, "publish")
		p.logger.Error("Failed to publish merged record",
			"component", p.name,
			"output_subject", p.outputSubject,
			"error", err)
		return
	}

	atomic.AddInt64(&p.recordsMerged, 1)
	p.metrics.recordFlush(p.name, "natural")
}

// emitTimeout routes a timeout-flushed record. With timeout_label configured
// the record goes out as a normal event under that tag; otherwise it is
// wrapped in a timeout error envelope on the error path.
func (p *Processor) emitTimeout(identity string, record stitch.Record) {
	ctx := context.Background()

	if p.cfg.TimeoutLabel != "" {
		event := message.LogEvent{
			Tag:       p.cfg.TimeoutLabel,
			Timestamp: time.Now().UTC(),
			Record:    record,
		}
		data, err := json.Marshal(event)
		if err != nil {
			atomic.AddInt64(&p.errCount, 1)
			p.metrics.recordError(p.name, "marshal")
			return
		}
		if err := p.publish(ctx, p.timeoutSubject, data); err != nil {
			atomic.AddInt64(&p.errCount, 1)
			p.metrics.recordError(p.name, "publish")
			p.logger.Error("Failed to publish timeout-flushed record",
				"component", p.name,
				"timeout_subject", p.timeoutSubject,
				"identity", identity,
				"error", err)
			return
		}
		atomic.AddInt64(&p.recordsMerged, 1)
		p.metrics.recordFlush(p.name, "timeout")
		return
	}

	p.logger.Warn("Stream flushed after timeout",
		"component", p.name,
		"identity", identity)
	p.publishError(ctx, message.NewTimeoutError(identity, record))
	p.metrics.recordFlush(p.name, "timeout")
}

// publishError sends an error envelope, if an error output is configured.
func (p *Processor) publishError(ctx context.Context, event message.ErrorEvent) {
	if p.errorSubject == "" {
		p.logger.Warn("Dropping error event, no error_output configured",
			"component", p.name,
			"kind", event.Kind,
			"message", event.Message)
		return
	}

	data, err := event.Marshal()
	if err != nil {
		p.metrics.recordError(p.name, "marshal")
		return
	}
	if err := p.publish(ctx, p.errorSubject, data); err != nil {
		p.metrics.recordError(p.name, "publish")
		p.logger.Error("Failed to publish error event",
			"component", p.name,
			"error_subject", p.errorSubject,
			"error", err)
	}
}

// Discoverable interface implementation

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "Multiline log record concatenation (logs.batch.v1 in, logs.record.v1 out)",
		Version:     "0.1.0",
	}
}

// InputPorts returns the NATS input ports this processor subscribes to.
func (p *Processor) InputPorts() []component.Port {
	ports := make([]component.Port, 0, len(p.ports.Inputs))
	for _, def := range p.ports.Inputs {
		ports = append(ports, component.BuildPortFromDefinition(def, component.DirectionInput))
	}
	return ports
}

// OutputPorts returns the NATS output ports this processor publishes to.
func (p *Processor) OutputPorts() []component.Port {
	ports := make([]component.Port, 0, len(p.ports.Outputs))
	for _, def := range p.ports.Outputs {
		ports = append(ports, component.BuildPortFromDefinition(def, component.DirectionOutput))
	}
	return ports
}

// ConfigSchema returns the configuration schema for this processor.
func (p *Processor) ConfigSchema() component.ConfigSchema {
	return concatSchema
}

// Health returns the current health status of this processor.
func (p *Processor) Health() component.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    p.running,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&p.errCount)),
		Uptime:     time.Since(p.startTime),
	}
}

// DataFlow returns current data flow metrics for this processor.
func (p *Processor) DataFlow() component.FlowMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	processed := atomic.LoadInt64(&p.eventsProcessed)
	errorCount := atomic.LoadInt64(&p.errCount)

	var errorRate float64
	if processed > 0 {
		errorRate = float64(errorCount) / float64(processed)
	}

	return component.FlowMetrics{
		ErrorRate:    errorRate,
		LastActivity: p.lastActivity,
	}
}
