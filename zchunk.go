// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package zchunk implements a codec for the zchunk container format: a file
// layout that splits arbitrary input data into content-defined
// variable-length chunks, compresses each chunk independently with zstd, and
// records per-chunk checksums and offsets in a structured header.
//
// The package supports three operations: [Encode] (produce a zchunk file
// from a byte stream), [NewDecoder] plus [Decoder.WriteTo] (reconstruct the
// original byte stream from a zchunk file), and [Sync] (produce a new
// zchunk file by reusing chunks already present in a previously-downloaded
// zchunk file and fetching only the rest from an authoritative source).
//
// Unless otherwise informed clients should not assume implementations in
// this package are safe for parallel execution.
package zchunk
