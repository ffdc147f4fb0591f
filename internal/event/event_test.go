package event

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_NewMessage(t *testing.T) {
	raw := []byte(`{"type":"new_message","payload":{"id":"m1","sender_id":"U2","receiver_id":"U1","content":"hi","content_type":"text"}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	nm, isNew := ev.(NewMessage)
	if !isNew {
		t.Fatalf("expected NewMessage, got %T", ev)
	}
	if nm.Message.ID != "m1" || nm.Message.SenderID != "U2" || nm.Message.Content != "hi" {
		t.Fatalf("unexpected message: %+v", nm.Message)
	}
}

func TestDecode_TypingAndPresence(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{`{"type":"user_typing","payload":{"user_id":"U2"}}`, UserTyping{UserID: "U2"}},
		{`{"type":"user_stopped_typing","payload":{"user_id":"U2"}}`, UserStoppedTyping{UserID: "U2"}},
		{`{"type":"user_online","payload":{"user_id":"U3"}}`, UserOnline{UserID: "U3"}},
		{`{"type":"user_offline","payload":{"user_id":"U3"}}`, UserOffline{UserID: "U3"}},
	}
	for _, tc := range cases {
		ev, err := Decode([]byte(tc.raw))
		if err != nil {
			t.Fatalf("Decode %s: %v", tc.raw, err)
		}
		if ev != tc.want {
			t.Fatalf("got %#v, want %#v", ev, tc.want)
		}
	}
}

func TestDecode_DisconnectReason(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"disconnect","payload":{"reason":"server-forced"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, isDisc := ev.(Disconnected)
	if !isDisc || d.Reason != "server-forced" {
		t.Fatalf("got %#v", ev)
	}
}

func TestDecode_ConnectErrorMapsToServerError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"connect_error","payload":{"message":"invalid token"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	se, isErr := ev.(ServerError)
	if !isErr || se.Message != "invalid token" {
		t.Fatalf("got %#v", ev)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"totally_new_thing","payload":{}}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecode_MissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"user_typing"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, isTyping := ev.(UserTyping); !isTyping {
		t.Fatalf("got %T", ev)
	}
}

func TestEncode_Envelope(t *testing.T) {
	data, err := Encode(CmdTyping, "corr-1", map[string]string{"peer_id": "U2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != CmdTyping || env.ID != "corr-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["peer_id"] != "U2" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
