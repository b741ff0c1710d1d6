// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package podser

import (
	"github.com/cockroachdb/errors"
)

// Error classification sentinels. Every error produced by this package
// carries exactly one of them in its unwrap chain, so callers can match
// with errors.Is without depending on message text.
var (
	// ErrProtocolMisuse marks logic errors at the call site: consuming a
	// deserialize view twice, setting the original base twice, invoking an
	// accessor against the wrong Pod mode, or serializing through an
	// unregistered polymorphic type. These are defects in the calling code
	// and are never recoverable.
	ErrProtocolMisuse = errors.New("protocol misuse")

	// ErrSerialization marks failures on the save path.
	ErrSerialization = errors.New("serialization failed")

	// ErrDeserialization marks failures on the load path, including
	// archive-level failures (missing tag, malformed input, polymorphic
	// type mismatch) propagated unchanged.
	ErrDeserialization = errors.New("deserialization failed")
)

// ProtocolErrorf creates a protocol-misuse error.
func ProtocolErrorf(format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, ErrProtocolMisuse, "podser: "+format, args...)
}

// SerializationErrorf creates a save-path error.
func SerializationErrorf(format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, ErrSerialization, "podser: "+format, args...)
}

// DeserializationErrorf creates a load-path error.
func DeserializationErrorf(format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, ErrDeserialization, "podser: "+format, args...)
}

// FromError wraps a foreign error crossing into this package on the save
// path. Errors that already carry one of the sentinels pass through
// unchanged.
func FromError(err error) error {
	return markForeign(err, ErrSerialization)
}

func markForeign(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProtocolMisuse) || errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeserialization) {
		return err
	}
	return errors.Wrap(errors.Join(err, sentinel), "podser")
}

// IsProtocolMisuse reports whether err is a protocol-misuse error.
func IsProtocolMisuse(err error) bool {
	return errors.Is(err, ErrProtocolMisuse)
}

// protocolPanicf panics with a protocol-misuse error. Used by accessors
// whose misuse indicates defective calling code rather than a runtime
// condition the caller could handle.
func protocolPanicf(format string, args ...interface{}) {
	panic(errors.WrapWithDepthf(1, ErrProtocolMisuse, "podser: "+format, args...))
}
