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
// Package query provides a marker/event query language over a Stream of
// tevent.Records, built on the same ltl.Operator matching primitives used
// to match trace events against patterns of named attributes, bindings,
// and references. A Matcher is a terminal ltl.Operator that consumes
// RecordTokens one at a time until a single-event clause (an attribute
// match, a binding assignment, or a binding reference) is satisfied.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ilhamster/ltl/pkg/binder"
	be "github.com/ilhamster/ltl/pkg/bindingenvironment"
	"github.com/ilhamster/ltl/pkg/bindings"
	"github.com/ilhamster/ltl/pkg/ltl"

	"github.com/traceforge/traceforge/statickey"
)

// Field names a RecordToken's matchable attributes, addressed as
// "event.<field>" in query strings.
const (
	// Name is a RecordToken's scope/marker/counter name.
	Name = "name"
	// Category is a RecordToken's category, matched against any of the
	// category id's registered human-readable names.
	Category = "category"
	// Timestamp is a RecordToken's time stamp, in ticks.
	Timestamp = "timestamp"
	// Thread is the id of the thread the record was recorded on.
	Thread = "thread"
	// Type is the record's tevent.Type, matched by its String() form
	// ("Begin", "End", "Marker", "CounterDelta", ...).
	Type = "type"
	// Value is a counter record's Value field.
	Value = "value"
)

var (
	// matchExprRe matches the general format of a matcher expression,
	// either attribute=value or bindingName<-attribute.
	matchExprRe = regexp.MustCompile(`^(?:(.+)=(.+))|(?:\$(\w+)<-(.+))$`)

	// fieldNamesRe matches the specific allowed attribute names.
	fieldNamesRe = regexp.MustCompile(`^event\.(name|category|timestamp|thread|type|value)$`)

	extractFieldRe = regexp.MustCompile(`^event\.(\w+)$`)
)

// RecordToken wraps the index of a record in a Stream, implementing the
// ltl.Token/ltl.Operator plumbing an index into a Stream needs to drive
// an ltl.Operator.
type RecordToken int

// EOI (End of Input) is always false for record tokens.
func (t RecordToken) EOI() bool { return false }

func (t RecordToken) String() string { return strconv.Itoa(int(t)) }

// Matcher is a terminal, single-event ltl.Operator over a Stream.
type Matcher struct {
	sourceInput  string
	stream       *Stream
	matching     func(r *Entry) bool
	extractToken func(name string, tok ltl.Token) (*bindings.Bindings, error)
}

func (m Matcher) String() string { return fmt.Sprintf("[%s]", m.sourceInput) }

// Reducible reports that every Matcher can be folded by the ltl engine.
func (m Matcher) Reducible() bool { return true }

func fieldValue(field string, r *Entry) string {
	switch field {
	case Name:
		return r.Record.Key.Name()
	case Category:
		return strings.Join(statickey.GetCategories(r.Record.Category), ",")
	case Timestamp:
		return strconv.FormatInt(int64(r.Record.TimeStamp), 10)
	case Thread:
		return strconv.FormatUint(uint64(r.Thread), 10)
	case Type:
		return r.Record.Type.String()
	case Value:
		return strconv.FormatFloat(r.Record.Value, 'g', -1, 64)
	default:
		return ""
	}
}

func newAttributeMatcher(stream *Stream, m *Matcher, field, value string) (*Matcher, error) {
	if !fieldNamesRe.MatchString(field) {
		return nil, fmt.Errorf("invalid attribute or format %q", field)
	}
	name := extractFieldRe.FindStringSubmatch(field)[1]

	switch name {
	case Timestamp, Thread:
		want, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer for attribute %q, got %q", name, value)
		}
		m.matching = func(r *Entry) bool {
			got, _ := strconv.ParseInt(fieldValue(name, r), 10, 64)
			return got == want
		}
	case Value:
		want, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number for attribute %q, got %q", name, value)
		}
		m.matching = func(r *Entry) bool {
			got, _ := strconv.ParseFloat(fieldValue(name, r), 64)
			return got == want
		}
	default:
		m.matching = func(r *Entry) bool { return fieldValue(name, r) == value }
	}
	return m, nil
}

func attachTokenExtractor(m *Matcher, stream *Stream, field string) (*Matcher, error) {
	m.extractToken = func(bindName string, tok ltl.Token) (*bindings.Bindings, error) {
		rtok, ok := tok.(RecordToken)
		if !ok {
			return nil, fmt.Errorf("failed to make binding: got %T but want RecordToken", tok)
		}
		r, err := stream.EntryByIndex(int(rtok))
		if err != nil {
			return nil, fmt.Errorf("failed to make binding: %w", err)
		}
		switch field {
		case Timestamp, Thread:
			v, _ := strconv.Atoi(fieldValue(field, r))
			return bindings.New(bindings.Int(bindName, v))
		case Value:
			return nil, fmt.Errorf("binding on the 'value' attribute is not currently supported")
		default:
			return bindings.New(bindings.String(bindName, fieldValue(field, r)))
		}
	}
	return m, nil
}

func newBindingBind(stream *Stream, m *Matcher, bindName, fieldExpr string) (ltl.Operator, error) {
	if !fieldNamesRe.MatchString(fieldExpr) {
		return nil, fmt.Errorf("invalid binding value or format %q", fieldExpr)
	}
	field := extractFieldRe.FindStringSubmatch(fieldExpr)[1]
	m, err := attachTokenExtractor(m, stream, field)
	if err != nil {
		return nil, err
	}
	b := binder.NewBuilder(true, m.extractToken)
	return b.Bind(bindName), nil
}

func newBindingReference(stream *Stream, m *Matcher, fieldExpr, bindExpr string) (ltl.Operator, error) {
	if !fieldNamesRe.MatchString(fieldExpr) {
		return nil, fmt.Errorf("invalid attribute or format %q", fieldExpr)
	}
	field := extractFieldRe.FindStringSubmatch(fieldExpr)[1]
	m, err := attachTokenExtractor(m, stream, field)
	if err != nil {
		return nil, err
	}
	b := binder.NewBuilder(true, m.extractToken)
	return b.Reference(strings.TrimPrefix(bindExpr, "$")), nil
}

// newMatcherFromString parses s, one of:
//
//	"event.name=work"            an attribute literal match
//	"event.name=$bound"          a reference to a previously bound value
//	"$bound<-event.name"         a binding assignment
func newMatcherFromString(stream *Stream, s string) (ltl.Operator, error) {
	if !matchExprRe.MatchString(s) {
		return nil, fmt.Errorf("expected 'attribute=value' or '$name<-attribute', got %q", s)
	}
	captures := matchExprRe.FindStringSubmatch(s)
	lhs, rhs := captures[1], captures[2]
	bindName, bindField := captures[3], captures[4]

	m := &Matcher{sourceInput: s, stream: stream}

	if lhs != "" && rhs != "" && !strings.HasPrefix(rhs, "$") {
		return newAttributeMatcher(stream, m, lhs, rhs)
	}
	if lhs != "" && rhs != "" {
		return newBindingReference(stream, m, lhs, rhs)
	}
	return newBindingBind(stream, m, bindName, bindField)
}

// Match performs an LTL match step against tok.
func (m *Matcher) Match(tok ltl.Token) (ltl.Operator, ltl.Environment) {
	rtok, ok := tok.(RecordToken)
	if !ok {
		return nil, ltl.ErrEnv(fmt.Errorf("got token of type %T but expected RecordToken", tok))
	}
	if m == nil {
		return nil, be.New(be.Matching(false))
	}
	r, err := m.stream.EntryByIndex(int(rtok))
	if err != nil {
		return nil, ltl.ErrEnv(err)
	}
	return nil, be.New(be.Matching(m.matching(r)), be.Captured(rtok))
}

// Generator returns a function that parses query strings into
// ltl.Operators bound to stream, the way Stream.Tokens() does for the
// tokens those operators will be matched against.
func Generator(stream *Stream) func(s string) (ltl.Operator, error) {
	return func(s string) (ltl.Operator, error) {
		return newMatcherFromString(stream, s)
	}
}
