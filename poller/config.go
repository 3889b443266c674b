package poller

import (
	"errors"
	"fmt"
	"time"
)

// Polling a remote UI faster than this only adds load on the provider.
const minInterval = 250 * time.Millisecond

// Config is a user-provided polling setting.
type Config struct {
	Interval time.Duration
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing or validation errors.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the polling config: %v", err)
	}

	d, ok := v["interval"]
	if !ok {
		return errors.New("the polling config does not include an interval")
	}

	pd, err := time.ParseDuration(d)
	if err != nil {
		return fmt.Errorf("can't parse the polling interval as a duration: %v", err)
	}

	if pd < minInterval {
		return fmt.Errorf("polling interval must be at least %v", minInterval)
	}

	c.Interval = pd
	return nil
}
