// Copyright 2021 Optakt Labs OÜ
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

// Package spine implements the fueled, append-only trace: a log-structured
// collection of batches kept in power-of-two levels, merged progressively
// as new batches arrive.
package spine

import "github.com/go-playground/validator/v10"

// DefaultEffort is the fuel multiplier applied to every introduced batch
// when no explicit effort is configured. Effort must be at least 1; a
// value of zero performs no merge work and is never useful.
const DefaultEffort = 1

// Config configures a Spine's fueling discipline.
type Config struct {
	Effort int `validate:"gte=1"`
}

// Option is a function that modifies a configuration.
type Option func(*Config)

// DefaultConfig is the spine's default configuration.
var DefaultConfig = Config{
	Effort: DefaultEffort,
}

// WithEffort sets the fuel multiplier: each introduced batch at level k
// fuels in-progress merges with (8 << k) * effort units of work.
func WithEffort(effort int) Option {
	return func(config *Config) {
		config.Effort = effort
	}
}

var validate = validator.New()

// buildConfig applies opts over DefaultConfig and validates the result. An
// Effort of 0 (for example from WithEffort(0)) is clamped to DefaultEffort
// rather than rejected, matching spine_fueled.rs's with_effort ("Zero
// effort is .. not smart"); a negative Effort fails validation.
func buildConfig(opts []Option) (Config, error) {
	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}
	if config.Effort == 0 {
		config.Effort = DefaultEffort
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, err
	}
	return config, nil
}
