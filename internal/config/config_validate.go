// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/shopsignal/internal/validation"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks field constraints, then the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	return c.validateEvents()
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := &c.Recommend
	if r.DefaultK > r.MaxK {
		return fmt.Errorf("recommend.default_k (%d) must not exceed recommend.max_k (%d)", r.DefaultK, r.MaxK)
	}
	if r.TrainSchedule != "" {
		if _, err := cron.ParseStandard(r.TrainSchedule); err != nil {
			return fmt.Errorf("recommend.train_schedule %q: %w", r.TrainSchedule, err)
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.NATSURL == "" {
		return nil
	}
	if c.Events.EmbeddedNATS {
		return fmt.Errorf("events.nats_url and events.embedded_nats are mutually exclusive")
	}
	u, err := url.Parse(c.Events.NATSURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("events.nats_url %q must be a URL like nats://host:4222", c.Events.NATSURL)
	}
	return nil
}
