// SPDX-License-Identifier: AGPL-3.0-or-later
// tgnet-e2e - Terragraph end-to-end control plane
// Copyright (C) 2026 Terragraph Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package traffic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tgnet/e2e/internal/bus"
	"github.com/tgnet/e2e/internal/testutils/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingRouter struct {
	mu   sync.Mutex
	sent []bus.Envelope
}

func (r *recordingRouter) Route(env bus.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
	return nil
}

func (r *recordingRouter) last() (bus.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return bus.Envelope{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// fakeRunner stands in for a real iperf/ping fork+exec so tests never shell
// out; it optionally blocks until released, to exercise cancellation.
type fakeRunner struct {
	output string
	err    error
	block  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, req Req) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.output, f.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	ok := retry.Retry(t, 200, 10*time.Millisecond, func(r *retry.R) {
		if !cond() {
			r.Errorf("condition not met yet")
		}
	})
	if !ok {
		t.Fatal("condition not met before deadline")
	}
}

func TestDispatchRunsWorkerAndSendsResp(t *testing.T) {
	router := &recordingRouter{}
	runner := &fakeRunner{output: "5 packets transmitted"}
	app := NewMinionApp("dn1", router, runner, testLogger())

	env := envelopeFor(t, Req{ReqID: "r1", Tool: "ping", Target: "10.0.0.1", DurationSec: 4})
	app.dispatch(context.Background(), env)

	waitFor(t, func() bool { return app.InFlightCount() == 0 })

	got, ok := router.last()
	if !ok {
		t.Fatal("expected a TrafficResp envelope sent")
	}
	if got.Type != bus.MsgTrafficResp {
		t.Fatalf("expected MsgTrafficResp, got %v", got.Type)
	}
	var resp Resp
	if err := json.Unmarshal(got.Payload, &resp); err != nil {
		t.Fatalf("unmarshal resp: %v", err)
	}
	if !resp.Success || resp.ReqID != "r1" || resp.Output != "5 packets transmitted" {
		t.Fatalf("unexpected resp: %+v", resp)
	}
	if got.DestNodeID != bus.ControllerNodeID || got.DestAppID != bus.AppTraffic {
		t.Fatalf("expected resp addressed to controller/TrafficApp, got %s/%s", got.DestNodeID, got.DestAppID)
	}
}

func TestDispatchReportsRunnerFailure(t *testing.T) {
	router := &recordingRouter{}
	runner := &fakeRunner{err: errBoom}
	app := NewMinionApp("dn1", router, runner, testLogger())

	app.dispatch(context.Background(), envelopeFor(t, Req{ReqID: "r2", Tool: "iperf", Target: "10.0.0.2"}))

	waitFor(t, func() bool { return app.InFlightCount() == 0 })

	got, _ := router.last()
	var resp Resp
	_ = json.Unmarshal(got.Payload, &resp)
	if resp.Success {
		t.Fatal("expected Success=false on runner error")
	}
	if resp.Error == "" {
		t.Fatal("expected Error populated on runner failure")
	}
}

func TestDispatchRejectsDuplicateInFlightReqID(t *testing.T) {
	router := &recordingRouter{}
	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	app := NewMinionApp("dn1", router, runner, testLogger())

	env := envelopeFor(t, Req{ReqID: "dup", Tool: "ping", Target: "10.0.0.1"})
	app.dispatch(context.Background(), env)
	app.dispatch(context.Background(), env) // duplicate while first still running

	if n := app.InFlightCount(); n != 1 {
		t.Fatalf("expected exactly 1 in-flight run, got %d", n)
	}
	close(block)
	waitFor(t, func() bool { return app.InFlightCount() == 0 })
}

func TestRunCancelsInFlightWorkersOnContextDone(t *testing.T) {
	router := &recordingRouter{}
	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	app := NewMinionApp("dn1", router, runner, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	app.Inbox() <- envelopeFor(t, Req{ReqID: "r3", Tool: "ping", Target: "10.0.0.1"})
	waitFor(t, func() bool { return app.InFlightCount() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	if app.InFlightCount() != 0 {
		t.Fatal("expected in-flight workers cancelled on shutdown")
	}
}

func envelopeFor(t *testing.T, req Req) bus.Envelope {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal req: %v", err)
	}
	return bus.Envelope{Type: bus.MsgTrafficReq, Payload: payload}
}

var errBoom = &runnerError{"exit status 1"}

type runnerError struct{ msg string }

func (e *runnerError) Error() string { return e.msg }
