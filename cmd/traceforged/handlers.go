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
package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/traceforge/traceforge/aggregate"
	"github.com/traceforge/traceforge/eventtree"
	"github.com/traceforge/traceforge/reporter"
	"github.com/traceforge/traceforge/traceio"
)

const err500 = "Internal Server Error"

type handler struct {
	registry *reporter.Registry
}

// gzipEnabledWriter returns a gzip writer that wraps the
// http.ResponseWriter if the client supports reading gzip; if it does
// not, the http.ResponseWriter is returned unchanged. The function also
// returns a closing function that must be called before the request
// completes.
func gzipEnabledWriter(req *http.Request, w http.ResponseWriter) (io.Writer, func() error) {
	if strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
		gzw := gzip.NewWriter(w)
		return gzw, gzw.Close
	}
	return w, func() error { return nil }
}

func sendStructHTTPResponse(req *http.Request, res interface{}, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	writer, closer := gzipEnabledWriter(req, w)
	defer func() { _ = closer() }()
	if err := json.NewEncoder(writer).Encode(res); err != nil {
		http.Error(w, err500, http.StatusInternalServerError)
	}
}

type ingestResponse struct {
	ID uuid.UUID `json:"id"`
}

// handleIngest accepts a posted Collection in the traceio wire format,
// publishes it through the registry (so any Subscriber is notified), and
// returns the id it was assigned.
func (h *handler) handleIngest(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	coll, err := traceio.ReadOne(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e := h.registry.Reserve()
	h.registry.Publish(e, coll)
	log.Infof("ingested collection %s with %d threads", e.ID, len(coll.ThreadIDs()))
	sendStructHTTPResponse(req, ingestResponse{ID: e.ID}, w)
}

// handleGetCollection serves back the original Collection in the
// traceio wire format.
func (h *handler) handleGetCollection(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, "invalid collection id: "+err.Error(), http.StatusBadRequest)
		return
	}
	entry, ok := h.registry.Get(id)
	if !ok {
		http.Error(w, "no such collection", http.StatusNotFound)
		return
	}
	coll, err := entry.Wait(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writer, closer := gzipEnabledWriter(req, w)
	defer func() { _ = closer() }()
	if err := traceio.WriteOne(writer, coll); err != nil {
		http.Error(w, err500, http.StatusInternalServerError)
	}
}

// reportNode is the JSON shape handleGetReport serves: an
// aggregate.Node flattened to plain fields and recursively nested
// children in first-seen order.
type reportNode struct {
	Name              string             `json:"name"`
	Count             int                `json:"count"`
	ExclusiveCount    int                `json:"exclusiveCount"`
	InclusiveSeconds  float64            `json:"inclusiveSeconds"`
	ExclusiveSeconds  float64            `json:"exclusiveSeconds"`
	InclusiveCounters map[string]float64 `json:"inclusiveCounters,omitempty"`
	ExclusiveCounters map[string]float64 `json:"exclusiveCounters,omitempty"`
	Children          []reportNode       `json:"children,omitempty"`
}

type report struct {
	Threads []reportNode       `json:"threads"`
	Totals  map[string]float64 `json:"totals,omitempty"`
}

func toReportNode(n *aggregate.Node) reportNode {
	children := n.SortedChildren()
	out := reportNode{
		Count:             n.Count,
		ExclusiveCount:    n.ExclusiveCount,
		InclusiveSeconds:  n.InclusiveDuration.Seconds(),
		ExclusiveSeconds:  n.ExclusiveDuration.Seconds(),
		InclusiveCounters: n.InclusiveCounters,
		ExclusiveCounters: n.ExclusiveCounters,
		Children:          make([]reportNode, len(children)),
	}
	if n.Key != nil {
		out.Name = n.Key.Name()
	}
	for i, c := range children {
		out.Children[i] = toReportNode(c)
	}
	return out
}

// handleGetReport builds the event tree and aggregate tree for a
// previously ingested collection and serves the aggregate report as
// JSON. The query string parameter "fold=1" selects the recursion-
// folded view (aggregate.FoldRecursive) instead of the raw view.
func (h *handler) handleGetReport(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, "invalid collection id: "+err.Error(), http.StatusBadRequest)
		return
	}
	entry, ok := h.registry.Get(id)
	if !ok {
		http.Error(w, "no such collection", http.StatusNotFound)
		return
	}
	coll, err := entry.Wait(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	et, err := eventtree.Build(coll, eventtree.Concurrent())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var at *aggregate.Tree
	if req.URL.Query().Get("fold") == "1" {
		at = aggregate.FoldRecursive(et)
	} else {
		at = aggregate.Build(et)
	}

	rep := report{Totals: at.Totals}
	for _, c := range at.Root.SortedChildren() {
		rep.Threads = append(rep.Threads, toReportNode(c))
	}
	sendStructHTTPResponse(req, rep, w)
}
