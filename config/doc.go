// Package config defines the application configuration for the logstitch
// service and a loader that layers defaults, a JSON file, and LOGSTITCH_*
// environment overrides.
//
// The processor section is carried as raw JSON and handed to the concat
// processor unparsed; its schema lives with the processor.
package config
