// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"github.com/Thermoquad/xbgate/pkg/sensor"
	"github.com/Thermoquad/xbgate/pkg/xbee"
)

func sampleDelivery(t *testing.T) Delivery {
	t.Helper()
	f, err := sensor.Decode(samplePayload)
	if err != nil {
		t.Fatal(err)
	}
	return Delivery{
		Time:     time.UnixMilli(1700000000000),
		Source:   nodeAddr,
		Source16: 0x1234,
		Packet:   &xbee.ReceivePacket{Source64: nodeAddr, Source16: 0x1234, Payload: samplePayload},
		Frame:    f,
	}
}

// writeScript creates a shell script that stores its arguments in out.
func writeScript(t *testing.T, body string) (script, out string) {
	t.Helper()
	dir := t.TempDir()
	script = filepath.Join(dir, "store.sh")
	out = filepath.Join(dir, "out")
	content := "#!/bin/sh\n" + strings.ReplaceAll(body, "OUT", out) + "\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}
	return script, out
}

// ============================================================
// Script Sink Tests
// ============================================================

func TestScriptSink_Arguments(t *testing.T) {
	script, out := writeScript(t, `echo "$@" > OUT`)
	sink := NewScriptSink(script, 5*time.Second, quietLogger())

	if err := sink.Deliver(context.Background(), sampleDelivery(t)); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("script did not run: %v", err)
	}
	expected := "address=xb@00:13:a2:00:40:bd:47:18 id=0 temp=17.175426 id=1 humd=46.780199 id=2 volt=4.724780\n"
	if string(got) != expected {
		t.Errorf("arguments = %q\nwant %q", got, expected)
	}
}

func TestScriptSink_Skips(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Delivery)
	}{
		{"duplicate", func(d *Delivery) { d.Duplicate = true }},
		{"no frame", func(d *Delivery) { d.Frame = nil }},
		{"no readings", func(d *Delivery) { d.Frame.Readings = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, out := writeScript(t, `echo ran > OUT`)
			sink := NewScriptSink(script, time.Second, quietLogger())

			d := sampleDelivery(t)
			tt.modify(&d)
			if err := sink.Deliver(context.Background(), d); err != nil {
				t.Fatalf("Deliver error: %v", err)
			}
			if _, err := os.Stat(out); err == nil {
				t.Error("script ran")
			}
		})
	}
}

func TestScriptSink_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		timeout time.Duration
	}{
		{"exit status", "exit 3", time.Second},
		{"timeout", "exec sleep 5", 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, _ := writeScript(t, tt.body)
			sink := NewScriptSink(script, tt.timeout, quietLogger())

			start := time.Now()
			if err := sink.Deliver(context.Background(), sampleDelivery(t)); err == nil {
				t.Error("expected error")
			}
			if time.Since(start) > 3*time.Second {
				t.Error("timeout not enforced")
			}
		})
	}
}

// ============================================================
// Multi Sink Tests
// ============================================================

func TestMultiSink(t *testing.T) {
	errFirst := errors.New("first")
	var calls []string
	m := MultiSink{
		SinkFunc(func(context.Context, Delivery) error {
			calls = append(calls, "a")
			return errFirst
		}),
		SinkFunc(func(context.Context, Delivery) error {
			calls = append(calls, "b")
			return nil
		}),
	}

	err := m.Deliver(context.Background(), Delivery{})
	if !errors.Is(err, errFirst) {
		t.Errorf("error = %v, want first", err)
	}
	if strings.Join(calls, "") != "ab" {
		t.Errorf("calls = %v, want every sink in order", calls)
	}
	if err := (MultiSink{}).Deliver(context.Background(), Delivery{}); err != nil {
		t.Errorf("empty MultiSink error = %v", err)
	}
}

// ============================================================
// Publish Sink Tests
// ============================================================

func TestNewRecord(t *testing.T) {
	r := NewRecord(sampleDelivery(t))
	if r.Source != "00:13:a2:00:40:bd:47:18" || r.Source16 != 0x1234 || r.Counter != 8 {
		t.Errorf("record = %+v", r)
	}
	if r.Time != 1700000000000 || len(r.Readings) != 3 || r.Payload != nil {
		t.Errorf("record = %+v", r)
	}
	if r.Readings[1].Unit != "humd" || r.Readings[1].Kind != sensor.KindHumidity {
		t.Errorf("reading = %+v", r.Readings[1])
	}

	raw := NewRecord(Delivery{Packet: &xbee.ReceivePacket{Payload: []byte{0x42}}})
	if len(raw.Payload) != 1 || raw.Readings != nil {
		t.Errorf("raw record = %+v", raw)
	}
}

func TestPublishSink(t *testing.T) {
	received := make(chan []byte, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "gw" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.BinaryMessage {
				received <- data
			}
		}
	}))
	defer server.Close()

	sink := NewPublishSink("ws"+strings.TrimPrefix(server.URL, "http"), false, quietLogger())
	sink.Username = "gw"
	sink.Password = "secret"
	defer sink.Close()

	d := sampleDelivery(t)
	d.Duplicate = true
	if err := sink.Deliver(context.Background(), d); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	select {
	case data := <-received:
		var r Record
		if err := cbor.Unmarshal(data, &r); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		if r.Source != nodeAddr.String() || !r.Duplicate || len(r.Readings) != 3 {
			t.Errorf("record = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestPublishSink_DialErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"bad scheme", "http://localhost:1/"},
		{"unparsable", "ws://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := NewPublishSink(tt.url, false, quietLogger())
			if err := sink.Deliver(context.Background(), sampleDelivery(t)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
