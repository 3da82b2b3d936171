// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package jaeger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnvOverridesDefaults(t *testing.T) {
	for k, v := range map[string]string{
		"JAEGER_SERVICE_NAME":           "my-service",
		"JAEGER_SAMPLER_TYPE":           "probabilistic",
		"JAEGER_SAMPLER_PARAM":          "0.25",
		"JAEGER_REPORTER_FLUSH_INTERVAL": "500",
		"JAEGER_AGENT_HOST":             "agent.local",
		"JAEGER_AGENT_PORT":             "7000",
		"JAEGER_TAGS":                   "a=1, b=2",
		"JAEGER_DISABLED":               "true",
	} {
		t.Setenv(k, v)
	}

	cfg := ConfigFromEnv()
	assert.Equal(t, "my-service", cfg.ServiceName)
	assert.Equal(t, "probabilistic", cfg.SamplerType)
	assert.Equal(t, 0.25, cfg.SamplerParam)
	assert.Equal(t, 500*time.Millisecond, cfg.ReporterFlushInterval)
	assert.Equal(t, "agent.local", cfg.AgentHost)
	assert.Equal(t, 7000, cfg.AgentPort)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, cfg.Tags)
	assert.True(t, cfg.Disabled)
}

func TestConfigFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("JAEGER_SAMPLER_PARAM", "not-a-number")
	t.Setenv("JAEGER_AGENT_PORT", "not-a-port")

	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultConfig().SamplerParam, cfg.SamplerParam)
	assert.Equal(t, DefaultConfig().AgentPort, cfg.AgentPort)
}

func TestConfigNewSamplerDispatch(t *testing.T) {
	cfg := &Config{SamplerType: "probabilistic", SamplerParam: 0.5}
	sampler, ok := cfg.NewSampler().(*ProbabilisticSampler)
	assert.True(t, ok)
	assert.Equal(t, 0.5, sampler.Rate)

	cfg = &Config{SamplerType: "ratelimiting", SamplerParam: 10}
	_, ok = cfg.NewSampler().(*RateLimitingSampler)
	assert.True(t, ok)

	cfg = &Config{SamplerType: "const", SamplerParam: 1}
	_, ok = cfg.NewSampler().(*ConstSampler)
	assert.True(t, ok)
}
