package types

import (
	"errors"
	"testing"
)

func TestDecodeRequestEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"REQUEST","time":"12:00:01","method":"GET","url":"/cameras/status","status":200,"responseTime":12.50}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	req, ok := ev.(RequestEvent)
	if !ok {
		t.Fatalf("expected RequestEvent, got %T", ev)
	}
	if req.Method != "GET" || req.URL != "/cameras/status" {
		t.Fatalf("unexpected request fields: %+v", req)
	}
	if req.Status != "200" {
		t.Fatalf("expected status 200, got %q", req.Status)
	}
	if req.ResponseTime != "12.5" {
		t.Fatalf("expected response time 12.5, got %q", req.ResponseTime)
	}
}

func TestDecodeErrorEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"ERROR","time":"t","status":"500","method":"POST","message":"boom","url":"/x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e, ok := ev.(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent, got %T", ev)
	}
	if e.Message != "boom" || e.Status != "500" {
		t.Fatalf("unexpected error fields: %+v", e)
	}
}

func TestDecodeResourceEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"RESOURCE","cpu":3.25,"memory":512,"uptime":61000,"load":null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, ok := ev.(ResourceEvent)
	if !ok {
		t.Fatalf("expected ResourceEvent, got %T", ev)
	}
	if r.CPU != "3.25" || r.Memory != "512" || r.Load != "" {
		t.Fatalf("unexpected resource fields: %+v", r)
	}
	if up, ok := r.Uptime.Float(); !ok || up != 61000 {
		t.Fatalf("expected uptime 61000, got %v (%v)", up, ok)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	cases := []string{
		`{"type":"DEPLOY"}`,
		`{"method":"GET"}`,
		`{"type":7}`,
		`[1,2,3]`,
		`null`,
		`"REQUEST"`,
	}
	for _, c := range cases {
		_, err := DecodeEvent([]byte(c))
		if !errors.Is(err, ErrUnknownEventType) {
			t.Fatalf("%s: expected ErrUnknownEventType, got %v", c, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, c := range []string{`{"type":"REQUEST"`, `not json`, ``} {
		_, err := DecodeEvent([]byte(c))
		if !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("%q: expected ErrMalformedEvent, got %v", c, err)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:         "0",
		42:        "42",
		1.5:       "1.5",
		-3:        "-3",
		1e21:      "1e+21",
		0.0000001: "1e-7",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestConnectionStateString(t *testing.T) {
	if Connected.String() != "Connected" || Disconnected.String() != "Disconnected" {
		t.Fatalf("unexpected state names: %s %s", Connected, Disconnected)
	}
}

func TestConnectionStateText(t *testing.T) {
	var s ConnectionState
	if err := s.UnmarshalText([]byte("Connected")); err != nil || s != Connected {
		t.Fatalf("expected Connected, got %v (%v)", s, err)
	}
	if err := s.UnmarshalText([]byte("Open")); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}
