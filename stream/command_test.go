package stream

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    CommandType
		wantErr bool
	}{
		{`{"type":"applySettings","settings":{"speed":3}}`, ApplySettings, false},
		{`{"type":"applySettings"}`, ApplySettings, true},
		{`{"type":"resize","width":800,"height":600}`, Resize, false},
		{`{"type":"resize","width":0,"height":600}`, Resize, true},
		{`{"type":"resize","width":65535,"height":600}`, Resize, false},
		{`{"type":"resize","width":70000,"height":600}`, Resize, true},
		{`{"type":"loadPreset","preset":"fast"}`, LoadPreset, false},
		{`{"type":"loadPreset"}`, LoadPreset, true},
		{`{"type":"resetQueue"}`, ResetQueue, false},
		{`{"type":"stop"}`, Stop, false},
		{`{"type":"explode"}`, "explode", true},
		{`not json`, "", true},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand([]byte(tt.payload))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%s) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if cmd.Type != tt.want {
			t.Errorf("ParseCommand(%s) type = %q, want %q", tt.payload, cmd.Type, tt.want)
		}
	}
}

func TestTopics(t *testing.T) {
	topics := DefaultTopics()
	if got := topics.FrameTopic("2"); got != "shuffler/2/frame" {
		t.Errorf("frame topic = %q", got)
	}
	if got := topics.CommandTopic("1"); got != "shuffler/1/command" {
		t.Errorf("command topic = %q", got)
	}
}
