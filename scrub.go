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

// scrubFallback is returned by ScrubName when nothing legal follows the
// last illegal byte.
const scrubFallback = "GenericTag"

// ScrubName normalizes an auto-derived tag string into an archive-legal
// identifier. Tag names are frequently produced from qualified type names
// ("pkg.Foo", "outer/inner.Bar") whose separators are not legal in
// name-value archives. Legal bytes are ASCII alphanumerics plus '.', '-'
// and '_'; the result is the substring following the last illegal byte,
// the input itself when every byte is legal, and a fixed fallback literal
// when the last illegal byte ends the string.
func ScrubName(name string) string {
	lastInvalid := -1
	for i := 0; i < len(name); i++ {
		c := name[i]
		legal := (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '-' || c == '_'
		if !legal {
			lastInvalid = i
		}
	}
	if lastInvalid == -1 {
		return name
	}
	if lastInvalid+1 == len(name) {
		return scrubFallback
	}
	return name[lastInvalid+1:]
}
