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
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// hookFunc handles the string-encoded config fields viper can't decode on
// its own: octal permission bits. Mirrors the teacher's cfg/decode_hook.go,
// trimmed to the types this config actually has.
func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		switch t {
		case reflect.TypeOf(Octal(0)):
			v, err := strconv.ParseInt(s, 8, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid octal value %q: %w", s, err)
			}
			return Octal(v), nil
		default:
			return data, nil
		}
	}
}

// DecodeHook composes the decode hooks viper.Unmarshal needs to turn
// flag/config-file strings into a Config: the Octal hook above plus the
// two stdlib-backed hooks mapstructure ships for durations and
// TextUnmarshaler implementations (InitString has none). The
// TextUnmarshaler hook runs first, so a string bound for an Octal field is
// parsed by Octal's own UnmarshalText before hookFunc sees it.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}
