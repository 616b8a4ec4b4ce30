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


// Package knowledge turns a tiered knowledge file into text units.
//
// The file is a JSON object with up to three tiers:
//
//	{
//	  "tier1": [{"question": "...", "answer": "..."}],
//	  "tier2": {"baggage": {"cabin": "7kg", "checked": ["20kg", "30kg"]}},
//	  "tier3": {"history": "Founded in 2003 ..."}
//	}
//
// Each tier1 pair becomes one unit with text "Q: <question>\nA: <answer>"
// and category "faqs". Each tier2 and tier3 category becomes one unit whose
// text is the category value flattened to lines: an object contributes its
// values in document order with arrays expanded item by item, an array
// contributes its items, and a scalar contributes itself.
//
// Units are emitted tier1 first, then tier2, then tier3, each tier in
// document order. SourceBlock is the position of the unit in that sequence.
// Categories that flatten to blank text are skipped. Unknown top-level keys
// are ignored.
package knowledge
