// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type envelope struct {
	Action string `cbor:"action"`
	Count  int    `cbor:"count,omitempty"`
}

type statusLike struct {
	Address string    `json:"address"`
	Started time.Time `json:"started"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": "a", "mid": true}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	started := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	data, err := Marshal(statusLike{Address: "127.0.0.1:28101", Started: started})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["address"] != "127.0.0.1:28101" {
		t.Errorf("address = %v, want json tag name used as key", decoded["address"])
	}
	if decoded["started"] != "2026-10-19T08:30:00Z" {
		t.Errorf("started = %v (%T), want RFC 3339 text", decoded["started"], decoded["started"])
	}
}

func TestStreamRoundtrip(t *testing.T) {
	messages := []envelope{{Action: "status"}, {Action: "shutdown", Count: 2}}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for index, want := range messages {
		var got envelope
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", index, err)
		}
		if got != want {
			t.Errorf("message %d = %+v, want %+v", index, got, want)
		}
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	data, err := Marshal(envelope{Action: "status", Count: 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw RawMessage
	if err := Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal into RawMessage: %v", err)
	}
	var header struct {
		Action string `cbor:"action"`
	}
	if err := Unmarshal(raw, &header); err != nil {
		t.Fatalf("Unmarshal header: %v", err)
	}
	if header.Action != "status" {
		t.Errorf("action = %q, want status", header.Action)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(envelope{Action: "status"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if diagnostic != `{"action": "status"}` {
		t.Errorf("Diagnose = %s", diagnostic)
	}
}
