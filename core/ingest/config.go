package ingest

import (
	"fmt"
	"time"
)

// Config controls how incoming records are grouped before being written.
type Config struct {
	// DataIntervalSeconds is the device sampling interval credited to a
	// moving unit for each record.
	DataIntervalSeconds int `json:"data_interval_seconds"`
	BatchSize           int `json:"batch_size"`
	FlushIntervalMS     int `json:"flush_interval_ms"`
}

// SetDefaults applies fallback values for optional fields.
func (c *Config) SetDefaults() {
	if c.DataIntervalSeconds <= 0 {
		c.DataIntervalSeconds = 30
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushIntervalMS <= 0 {
		c.FlushIntervalMS = 1000
	}
}

// Validate checks the configured ranges.
func (c Config) Validate() error {
	if c.DataIntervalSeconds < 0 {
		return fmt.Errorf("data_interval_seconds must be positive")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}

// FlushInterval returns the maximum time a record waits in the buffer.
func (c Config) FlushInterval() time.Duration {
	if c.FlushIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}
