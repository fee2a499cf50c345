package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNetwork = NetworkConfig{Name: "ethereum", APIHost: "api.etherscan.io", APIKey: "test-key"}

type explorerCall struct {
	Network string
	Action  string
	Address string
}

type fakeResponse struct {
	envelope *Envelope
	err      error
}

// fakeExplorer answers explorer calls from responses registered per
// action and address, and records every call it receives.
type fakeExplorer struct {
	mu        sync.Mutex
	calls     []explorerCall
	responses map[string]fakeResponse
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{responses: make(map[string]fakeResponse)}
}

func responseKey(action, address string) string {
	return action + ":" + strings.ToLower(address)
}

func (f *fakeExplorer) reply(action, address, status, message string, result any) *fakeExplorer {
	raw, err := json.Marshal(result)
	if err != nil {
		panic(err)
	}
	f.responses[responseKey(action, address)] = fakeResponse{
		envelope: &Envelope{Status: status, Message: message, Result: raw},
	}
	return f
}

func (f *fakeExplorer) fail(action, address string, err error) *fakeExplorer {
	f.responses[responseKey(action, address)] = fakeResponse{err: err}
	return f
}

func (f *fakeExplorer) Request(_ context.Context, network NetworkConfig, params url.Values) (*Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := explorerCall{Network: network.Name, Action: params.Get("action"), Address: params.Get("address")}
	f.calls = append(f.calls, call)
	resp, ok := f.responses[responseKey(call.Action, call.Address)]
	if !ok {
		return nil, fmt.Errorf("unexpected explorer call %+v", call)
	}
	return resp.envelope, resp.err
}

func (f *fakeExplorer) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		actions = append(actions, call.Action)
	}
	return actions
}

func sourceRecord(name, proxy, implementation, abi, source string) []ContractSourceRecord {
	return []ContractSourceRecord{{
		ContractName:   name,
		Proxy:          proxy,
		Implementation: implementation,
		ABI:            abi,
		SourceCode:     source,
	}}
}

// upstreamServer is an explorer API double served over HTTP.
type upstreamServer struct {
	*httptest.Server
	mu       sync.Mutex
	bodies   map[string]string
	requests []url.Values
}

func newUpstreamServer() *upstreamServer {
	u := &upstreamServer{bodies: make(map[string]string)}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		u.mu.Lock()
		u.requests = append(u.requests, query)
		body, ok := u.bodies[responseKey(query.Get("action"), query.Get("address"))]
		u.mu.Unlock()
		if !ok {
			body = `{"status":"0","message":"NOTOK","result":"unexpected request"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	return u
}

func (u *upstreamServer) reply(action, address, body string) *upstreamServer {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.bodies[responseKey(action, address)] = body
	return u
}

func (u *upstreamServer) network(name string) NetworkConfig {
	return NetworkConfig{Name: name, APIHost: u.URL, APIKey: "test-key"}
}

func (u *upstreamServer) requestCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}
