// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stack

import "strings"

// RawFrame is one entry of a goroutine stack as reported by the runtime.
// Line is zero and File empty when the location is unknown.
type RawFrame struct {
	Function string `json:"function" yaml:"function"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Line     int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// Package returns the declaring package of the frame's function.
func (f RawFrame) Package() string {
	return Package(f.Function)
}

// Thread identifies a goroutine. ID is the runtime goroutine id; Name is a
// human-readable label and may be empty.
type Thread struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Package returns the import path of the package declaring a fully
// qualified Go function name.
//
//	github.com/a/b.(*T).M      -> github.com/a/b
//	github.com/a/b.F.func1     -> github.com/a/b
//	main.main                  -> main
//	github.com/a/b.G[...]      -> github.com/a/b
//	gopkg.in/yaml%2ev3.F       -> gopkg.in/yaml.v3
//
// Names without a package qualifier are returned unchanged.
func Package(function string) string {
	name := function
	// Type parameters may contain slashes and dots of their own.
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return name
	}
	// The linker escapes dots in the last path element.
	return strings.ReplaceAll(name[:slash+1+dot], "%2e", ".")
}
