package tsdb

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config defines the connection parameters for the time-series store.
type Config struct {
	URL   string `json:"url"`
	Token string `json:"token"`
	// Username and Password are used for InfluxDB 1.8 compatibility when no
	// token is configured.
	Username string `json:"username"`
	Password string `json:"password"`
	Org      string `json:"org"`
	Bucket   string `json:"bucket"`
	// Database and RetentionPolicy map onto a bucket named "db/rp" for
	// InfluxDB 1.8 servers.
	Database        string `json:"database"`
	RetentionPolicy string `json:"retention_policy"`

	TimeoutSeconds   int    `json:"timeout_seconds"`
	Precision        string `json:"precision"`
	MaxRetries       int    `json:"max_retries"`
	BackoffMS        int    `json:"backoff_ms"`
	WriteConcurrency int    `json:"write_concurrency"`
}

// SetDefaults applies fallback values for optional fields.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.Precision == "" {
		c.Precision = "ns"
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if c.BucketName() == "" {
		return fmt.Errorf("bucket or database is required")
	}
	if _, err := c.PrecisionDuration(); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if c.WriteConcurrency < 0 {
		return fmt.Errorf("write_concurrency must be >= 0")
	}
	return nil
}

// BucketName returns the bucket to read from and write to.
func (c Config) BucketName() string {
	if c.Bucket != "" {
		return c.Bucket
	}
	if c.Database == "" {
		return ""
	}
	return c.Database + "/" + c.RetentionPolicy
}

// AuthToken returns the token sent to the server.
func (c Config) AuthToken() string {
	if c.Token != "" || c.Username == "" {
		return c.Token
	}
	return c.Username + ":" + c.Password
}

// Timeout returns the HTTP timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the base delay between write retries.
func (c Config) Backoff() time.Duration {
	if c.BackoffMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.BackoffMS) * time.Millisecond
}

// PrecisionDuration converts the precision name into a duration.
func (c Config) PrecisionDuration() (time.Duration, error) {
	switch strings.ToLower(c.Precision) {
	case "", "ns":
		return time.Nanosecond, nil
	case "us":
		return time.Microsecond, nil
	case "ms":
		return time.Millisecond, nil
	case "s":
		return time.Second, nil
	default:
		return 0, fmt.Errorf("unknown precision %s", c.Precision)
	}
}
