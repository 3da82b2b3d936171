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
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the environment/configuration surface: everything a caller
// needs to assemble Sampler, Reporter and Tracer options without touching
// this package's internals directly.
type Config struct {
	ServiceName string

	SamplerType  string  // "const", "probabilistic", "ratelimiting", "remote"
	SamplerParam float64

	ReporterFlushInterval   time.Duration
	ReporterMaxQueueSize    int

	AgentHost string
	AgentPort int

	Tags map[string]string

	UseTraceID128Bit bool
	Disabled         bool
}

// DefaultConfig matches the defaults of the real client's environment
// surface.
func DefaultConfig() *Config {
	return &Config{
		SamplerType:           "const",
		SamplerParam:          0,
		ReporterFlushInterval: time.Second,
		ReporterMaxQueueSize:  100,
		AgentHost:             "localhost",
		AgentPort:             6831,
		Tags:                  map[string]string{},
	}
}

// ConfigFromEnv loads a Config from the JAEGER_-prefixed environment
// variables. Unset variables keep DefaultConfig's values; malformed
// numeric/bool values are ignored rather than surfaced.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("JAEGER_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("JAEGER_SAMPLER_TYPE"); v != "" {
		cfg.SamplerType = v
	}
	if v := os.Getenv("JAEGER_SAMPLER_PARAM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SamplerParam = f
		}
	}
	if v := os.Getenv("JAEGER_REPORTER_FLUSH_INTERVAL"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.ReporterFlushInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("JAEGER_REPORTER_MAX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReporterMaxQueueSize = n
		}
	}
	if v := os.Getenv("JAEGER_AGENT_HOST"); v != "" {
		cfg.AgentHost = v
	}
	if v := os.Getenv("JAEGER_AGENT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AgentPort = n
		}
	}
	if v := os.Getenv("JAEGER_TAGS"); v != "" {
		cfg.Tags = parseTagsString(v)
	}
	if v := os.Getenv("JAEGER_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Disabled = b
		}
	}

	return cfg
}

// parseTagsString parses "k1=v1,k2=v2" into a map, the format of
// JAEGER_TAGS in the real client's configuration surface.
func parseTagsString(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}

// NewSampler builds the Sampler named by cfg.SamplerType/cfg.SamplerParam.
// "remote" requires an explicit fetcher, supplied separately via
// RemoteSamplerOptions; callers wanting a remote sampler should construct
// NewRemoteSampler directly instead of going through this helper.
func (c *Config) NewSampler() Sampler {
	switch c.SamplerType {
	case "probabilistic":
		return NewProbabilisticSampler(c.SamplerParam)
	case "ratelimiting":
		return NewRateLimitingSampler(c.SamplerParam)
	default:
		return &ConstSampler{Decision: c.SamplerParam != 0}
	}
}
