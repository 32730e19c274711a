//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
// Package statickey provides the identity and hashing primitives shared by
// every scope/category name in the tracing pipeline: compile-site static
// keys, list-owned interned keys, and the category id registry.
package statickey

// Hash computes the djb2-xor variant hash used throughout this package:
// h = 5381; for each byte b of s, h = (h*33) ^ b.
//
// hash("") == 5381 and hash("Test") == 0x7c885313 are load-bearing test
// vectors (see hash_test.go).
func Hash(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = (h * 33) ^ uint32(s[i])
	}
	return h
}
