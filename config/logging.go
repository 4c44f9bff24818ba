package config

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	// Debug enables debug output, including the per-batch write reports.
	Debug bool `json:"debug"`
}

// HTTPConfig defines the query API listener.
type HTTPConfig struct {
	// Address is the listen address. An empty value after defaults means
	// ":8080"; "-" disables the API.
	Address string `json:"address"`
}

// SetDefaults applies the default listen address.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// Enabled reports whether the API should be served.
func (c HTTPConfig) Enabled() bool { return c.Address != "-" }
