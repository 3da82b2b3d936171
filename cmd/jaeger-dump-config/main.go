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

// jaeger-dump-config is a diagnostic CLI that resolves the JAEGER_-prefixed
// environment into a Config and prints it as JSON, so an operator can see
// what a process would actually configure its tracer with before it
// starts.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	jaeger "github.com/jaegertracing/jaeger-go-core"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "jaeger-dump-config",
		Short: "Print the JAEGER_-prefixed environment resolved into a Config",
		RunE:  run,
	}
	root.Flags().Bool("defaults", false, "print DefaultConfig instead of reading the environment")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	defaults, err := cmd.Flags().GetBool("defaults")
	if err != nil {
		return err
	}

	var cfg *jaeger.Config
	if defaults {
		cfg = jaeger.DefaultConfig()
	} else {
		cfg = jaeger.ConfigFromEnv()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
