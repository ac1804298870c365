package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrelay/internal/reconcile"
	"runrelay/internal/workflow"
	logx "runrelay/pkg/logx"
)

type fakeRelay struct {
	mu     sync.Mutex
	events []workflow.Event
	err    error
	panic  bool
}

func (f *fakeRelay) Reconcile(_ context.Context, ev workflow.Event) (reconcile.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("relay exploded")
	}
	f.events = append(f.events, ev)
	if f.err != nil {
		return reconcile.Outcome{}, f.err
	}
	return reconcile.Outcome{Kind: reconcile.Created, RunID: ev.RunID, MessageID: "m"}, nil
}

func (f *fakeRelay) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

const inProgressBody = `{"action":"in_progress","workflow_run":{"id":42,"status":"in_progress","conclusion":null,"name":"CI"},"repository":{"full_name":"octo-org/hello-world"}}`

func serve(h http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerResponses(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		body      string
		headers   map[string]string
		relayErr  error
		wantCode  int
		wantBody  string
		wantCalls int
	}{
		{
			name:      "relayed",
			method:    http.MethodPost,
			body:      inProgressBody,
			headers:   map[string]string{headerEvent: "workflow_run"},
			wantCode:  http.StatusOK,
			wantBody:  `{"success":true}`,
			wantCalls: 1,
		},
		{
			name:      "no event header still relayed",
			method:    http.MethodPost,
			body:      inProgressBody,
			wantCode:  http.StatusOK,
			wantBody:  `{"success":true}`,
			wantCalls: 1,
		},
		{
			name:     "wrong method",
			method:   http.MethodGet,
			body:     inProgressBody,
			wantCode: http.StatusOK,
			wantBody: `{"error":"Only POST method is supported."}`,
		},
		{
			name:     "malformed json",
			method:   http.MethodPost,
			body:     `{"action":`,
			wantCode: http.StatusOK,
			wantBody: `{"error":"Malformed or missing JSON."}`,
		},
		{
			name:     "empty body",
			method:   http.MethodPost,
			wantCode: http.StatusOK,
			wantBody: `{"error":"Malformed or missing JSON."}`,
		},
		{
			name:     "unknown action",
			method:   http.MethodPost,
			body:     `{"action":"deleted","workflow_run":{"id":42}}`,
			wantCode: http.StatusOK,
			wantBody: `{"error":"Unsupported workflow_run action."}`,
		},
		{
			name:     "ping",
			method:   http.MethodPost,
			body:     `{"zen":"Keep it logically awesome.","hook_id":1}`,
			headers:  map[string]string{headerEvent: "ping"},
			wantCode: http.StatusOK,
			wantBody: `{"success":true}`,
		},
		{
			name:     "foreign event",
			method:   http.MethodPost,
			body:     inProgressBody,
			headers:  map[string]string{headerEvent: "push"},
			wantCode: http.StatusOK,
			wantBody: `{"error":"Unsupported event type."}`,
		},
		{
			name:      "relay failure",
			method:    http.MethodPost,
			body:      inProgressBody,
			relayErr:  &reconcile.Error{Op: "create", RunID: "42", Kind: reconcile.TransportFailure, Err: errors.New("discord 500")},
			wantCode:  http.StatusInternalServerError,
			wantBody:  `{"error":"Failed to relay workflow event."}`,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{err: tt.relayErr}
			h := NewHandler(relay, HandlerConfig{}, logx.Nop())

			rec := serve(h, tt.method, tt.body, tt.headers)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCalls, relay.calls())
		})
	}
}

func TestHandlerPassesParsedEvent(t *testing.T) {
	relay := &fakeRelay{}
	h := NewHandler(relay, HandlerConfig{}, logx.Nop())

	rec := serve(h, http.MethodPost, inProgressBody, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, relay.events, 1)
	ev := relay.events[0]
	assert.Equal(t, "42", ev.RunID)
	assert.Equal(t, workflow.ActionInProgress, ev.Action)
	assert.Equal(t, workflow.Pending{Status: workflow.StatusInProgress}, ev.Outcome)
	assert.Equal(t, "octo-org/hello-world", ev.Repository)
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	relay := &fakeRelay{}
	h := NewHandler(relay, HandlerConfig{MaxBodyBytes: 16}, logx.Nop())

	rec := serve(h, http.MethodPost, inProgressBody, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"Malformed or missing JSON."}`, rec.Body.String())
	assert.Equal(t, 0, relay.calls())
}

func TestHandlerRecoversPanic(t *testing.T) {
	h := NewHandler(&fakeRelay{panic: true}, HandlerConfig{}, logx.Nop())

	rec := serve(h, http.MethodPost, inProgressBody, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to relay workflow event."}`, rec.Body.String())
}

func TestHandlerEchoesDeliveryID(t *testing.T) {
	h := NewHandler(&fakeRelay{}, HandlerConfig{}, logx.Nop())

	rec := serve(h, http.MethodPost, inProgressBody, map[string]string{headerDelivery: "72d3162e-cc78-11e3-81ab-4c9367dc0958"})
	assert.Equal(t, "72d3162e-cc78-11e3-81ab-4c9367dc0958", rec.Header().Get(headerRequest))

	h.newID = func() string { return "generated" }
	rec = serve(h, http.MethodPost, inProgressBody, nil)
	assert.Equal(t, "generated", rec.Header().Get(headerRequest))
}
