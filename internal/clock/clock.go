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
// Package clock abstracts away wall-clock time so that lease expiry and
// cache TTLs can be tested without sleeping.
package clock

import "time"

// Clock knows the current time and can notify a caller after a duration
// has elapsed.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
