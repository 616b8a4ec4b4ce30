// Copyright 2025 Poiesic Systems
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


// Package storage defines the persisted form of a vector index.
//
// A persisted index is a Snapshot: the normalized vectors, the id map from
// index position to TextUnit id, and the docstore from TextUnit id to unit
// content, plus a Manifest recording dimension, cardinality and a checksum.
//
// # Layout
//
// The badger sub-package stores one index per named directory. Every key is
// written in a single transaction, so a reader observes either the complete
// triple or no index at all:
//
//	manifest         -> Manifest
//	vector:<pos>     -> []float32
//	idmap:<pos>      -> TextUnit id
//	unit:<id>        -> TextUnit
//
// Values are encoded with mus-go serializers (see serialization.go).
//
// # Validation
//
// Readers call Snapshot.Validate before handing a snapshot out. Validation
// checks the layout version, cardinality of all three artifacts, the id map
// bijection, vector dimensions and the manifest checksum.
//
// # Usage
//
//	if err := badger.SaveIndex(ctx, "/path/to/index", snapshot); err != nil {
//	    log.Fatal(err)
//	}
//
//	snapshot, err := badger.LoadIndex(ctx, "/path/to/index")
//	if err != nil {
//	    log.Fatal(err)
//	}
package storage
