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
// traceforged is a small HTTP front end that accepts posted Collections
// in the traceio wire format, publishes them through a reporter.Registry,
// and serves back the original JSON or a computed aggregate report. It
// is ambient scaffolding around the library, not part of the core
// pipeline: the out-of-process boundary, request/response shapes, and
// any authentication are this package's concern alone.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	log "github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/traceforge/traceforge/reporter"
)

var (
	port      = flag.Int("port", 7403, "The traceforged HTTP port.")
	cacheSize = flag.Int("cache_size", 25, "The maximum number of collections to keep cached at once.")
)

func registerHandlers(r *mux.Router, h *handler) {
	r.HandleFunc("/collections", h.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/collections/{id}", h.handleGetCollection).Methods(http.MethodGet)
	r.HandleFunc("/collections/{id}/report", h.handleGetReport).Methods(http.MethodGet)
}

var startServer = func(r *mux.Router) {
	http.Handle("/", r)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), nil); err != nil {
		log.Fatal(err)
	}
}

func runServer(ctx context.Context) {
	reg, err := reporter.New(*cacheSize)
	if err != nil {
		log.Exit(err)
	}
	r := mux.NewRouter()
	registerHandlers(r, &handler{registry: reg})
	startServer(r)
}

func main() {
	flag.Parse()
	runServer(context.Background())
}
