package component

import "fmt"

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes any I/O interface
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      Portable  `json:"config"`
}

// Portable is the minimal interface all port configurations implement
type Portable interface {
	ResourceID() string // Unique identifier for conflict detection
	Type() string       // Port type identifier
}

// InterfaceContract defines the expected message interface on a port
type InterfaceContract struct {
	Type    string `json:"type"`              // e.g., "logs.batch.v1"
	Version string `json:"version,omitempty"` // e.g., "v1"
}

// NATSPort - NATS pub/sub
type NATSPort struct {
	Subject   string             `json:"subject"`
	Queue     string             `json:"queue,omitempty"`
	Interface *InterfaceContract `json:"interface,omitempty"`
}

// ResourceID returns unique identifier for NATS ports
func (n NATSPort) ResourceID() string {
	return fmt.Sprintf("nats:%s", n.Subject)
}

// Type returns the port type identifier
func (n NATSPort) Type() string {
	return "nats"
}

// JetStreamPort - durable stream consumption or publication
type JetStreamPort struct {
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
}

// ResourceID returns unique identifier for JetStream ports
func (j JetStreamPort) ResourceID() string {
	return fmt.Sprintf("jetstream:%s", j.StreamName)
}

// Type returns the port type identifier
func (j JetStreamPort) Type() string {
	return "jetstream"
}

// PortDefinition represents a port configuration from JSON
type PortDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"` // "nats" or "jetstream"
	Subject     string `json:"subject,omitempty"`
	Interface   string `json:"interface,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
	StreamName  string `json:"stream_name,omitempty"`
}

// PortConfig represents port configuration in component config
type PortConfig struct {
	Inputs  []PortDefinition `json:"inputs,omitempty"`
	Outputs []PortDefinition `json:"outputs,omitempty"`
}

// BuildPortFromDefinition creates a Port from a PortDefinition
func BuildPortFromDefinition(def PortDefinition, direction Direction) Port {
	port := Port{
		Name:        def.Name,
		Direction:   direction,
		Required:    def.Required,
		Description: def.Description,
	}

	switch def.Type {
	case "jetstream":
		port.Config = JetStreamPort{
			StreamName: def.StreamName,
			Subjects:   []string{def.Subject},
		}
	default: // Default to NATS pub/sub
		var iface *InterfaceContract
		if def.Interface != "" {
			iface = &InterfaceContract{
				Type:    def.Interface,
				Version: "v1",
			}
		}
		port.Config = NATSPort{
			Subject:   def.Subject,
			Interface: iface,
		}
	}

	return port
}
