// Copyright 2024 The Cockroach Authors
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

package linprobe

import (
	"errors"
	"fmt"
)

// ErrMissingKey is matched (via errors.Is) by every MissingKeyError.
var ErrMissingKey = errors.New("linprobe: missing key")

// MissingKeyError is returned by Lookup, and panicked by MustGet, when the
// probe for a key ends on an empty slot.
type MissingKeyError struct {
	Key any
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("linprobe: missing key %v", e.Key)
}

func (e *MissingKeyError) Unwrap() error {
	return ErrMissingKey
}
