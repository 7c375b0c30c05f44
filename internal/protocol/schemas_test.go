package protocol

import (
	"encoding/json"
	"testing"
)

func TestValidateClient_Samples(t *testing.T) {
	ok := []string{
		`{"type":"HELLO","protocol_version":"1.0","role":"observer","name":"dash"}`,
		`{"type":"HELLO","protocol_version":"1.0","role":"player","name":"alice","spawn":[3,64,0]}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"PLACE","pos":[1,64,0],"block":"PLANK"}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"BREAK","pos":[1,64,0]}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"SLEEP"}`,
	}
	for _, s := range ok {
		if _, err := ValidateClient([]byte(s)); err != nil {
			t.Fatalf("validate %s: %v", s, err)
		}
	}

	bad := []string{
		`{"type":"HELLO","protocol_version":"1.0","role":"admin","name":"x"}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"PLACE","pos":[1,64,0]}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"BREAK"}`,
		`{"type":"ACT","protocol_version":"1.0","kind":"MOVE","pos":[1,64]}`,
		`{"type":"OBS","protocol_version":"1.0"}`,
		`not json`,
	}
	for _, s := range bad {
		if _, err := ValidateClient([]byte(s)); err == nil {
			t.Fatalf("expected rejection: %s", s)
		}
	}
}

func TestValidateEvent_ServerMessages(t *testing.T) {
	msgs := []any{
		ChatMsg{Type: TypeChat, Tick: 3, Text: "You are being raided!"},
		SoundMsg{Type: TypeSound, Tick: 3, Cue: "raid_win", Pos: [3]int{0, 64, 0}},
		ProgressMsg{Type: TypeProgress, Tick: 3, ChannelID: 0, Pos: [3]int{1, 64, 0}, Stage: -1},
		StatusMsg{Type: TypeStatus, Tick: 3, Phase: "active", RaidLevel: 2},
		ErrorMsg{Type: TypeError, Code: ErrBadRequest, Message: "nope"},
	}
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := ValidateEvent(b); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	b, _ := json.Marshal(ProgressMsg{Type: TypeProgress, Stage: 11})
	if err := ValidateEvent(b); err == nil {
		t.Fatalf("expected stage out of range rejection")
	}
}
