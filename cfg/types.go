// Copyright 2015 Google Inc. All Rights Reserved.
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
package cfg

import (
	"fmt"
	"strconv"
	"strings"
)

// Octal is the datatype for config fields such as file-perms and dir-perms
// that accept a base-8 value (e.g. "0755").
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return fmt.Errorf("invalid octal value %q: %w", text, err)
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// InitString is the "<coordinator_addr>,<self_rpc_addr>" configuration
// string the kernel-facing init callback receives, per spec §6.
type InitString struct {
	CoordinatorAddr string
	SelfRPCAddr     string
}

// ParseInitString parses the two comma-separated addresses carried by the
// mount-time init string.
func ParseInitString(s string) (InitString, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return InitString{}, fmt.Errorf("invalid init string %q: want \"<coordinator_addr>,<self_rpc_addr>\"", s)
	}
	return InitString{CoordinatorAddr: parts[0], SelfRPCAddr: parts[1]}, nil
}
