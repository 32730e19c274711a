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
package query

import (
	be "github.com/ilhamster/ltl/pkg/bindingenvironment"
	"github.com/ilhamster/ltl/pkg/ltl"
)

// Drive feeds toks through op one token at a time: each step re-binds op
// to the operator ltl.Match returns, stopping early (without consuming
// the rest of toks) if env ever reports an error.
func Drive(op ltl.Operator, toks []ltl.Token) (matched bool, env ltl.Environment) {
	for _, tok := range toks {
		op, env = ltl.Match(op, tok)
		if env.Err() != nil {
			return false, env
		}
	}
	if env == nil {
		return false, be.New(be.Matching(false))
	}
	return env.Matching(), env
}

// Result is one successful match: EndIndex, the index of the last token
// the drive consumed, and the indices of every entry the match captured.
// Each drive runs to the end of the stream, so EndIndex is always the
// stream's last index; neither the start offset nor the token at which
// the operator first matched is recorded.
type Result struct {
	EndIndex int
	Captures []int
}

// FindAll tries op against every suffix of stream's tokens in turn,
// returning one Result for every starting position whose drive ends in a
// match: a brute-force sliding-window search over an unsegmented stream.
func FindAll(op ltl.Operator, stream *Stream) ([]Result, error) {
	tokens := stream.Tokens()
	var results []Result
	for start := 0; start < len(tokens); start++ {
		suffix := make([]ltl.Token, len(tokens)-start)
		for i, t := range tokens[start:] {
			suffix[i] = t
		}
		matched, env := Drive(op, suffix)
		if env != nil && env.Err() != nil {
			return results, env.Err()
		}
		if !matched {
			continue
		}
		captures := be.Captures(env).Get(true)
		indices := make([]int, 0, len(captures))
		for tok := range captures {
			rtok, ok := tok.(RecordToken)
			if !ok {
				continue
			}
			indices = append(indices, int(rtok))
		}
		results = append(results, Result{EndIndex: start + len(suffix) - 1, Captures: indices})
	}
	return results, nil
}
