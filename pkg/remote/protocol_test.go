package remote

import (
	"testing"
	"time"
)

func validEnvelope(cmdType string) CommandEnvelope {
	env, _ := NewCommand(cmdType, nil)
	env.ID = "cmd-1"
	env.TS = time.Now().Unix()
	env.From = "cli-1"
	return env
}

func TestTopicConstruction(t *testing.T) {
	device := "abc123"
	if got := TopicCommands(BaseTopic, device); got != "gospot/v1/device/abc123/cmd" {
		t.Fatalf("unexpected command topic %q", got)
	}
	if got := TopicSnapshot(BaseTopic, device); got != "gospot/v1/device/abc123/snapshot" {
		t.Fatalf("unexpected snapshot topic %q", got)
	}
	if got := TopicReply(BaseTopic, "cli-1"); got != "gospot/v1/reply/cli-1" {
		t.Fatalf("unexpected reply topic %q", got)
	}
}

func TestValidateCommandEnvelope(t *testing.T) {
	if err := ValidateCommandEnvelope(validEnvelope(CmdResume)); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	missingID := validEnvelope(CmdResume)
	missingID.ID = ""
	if err := ValidateCommandEnvelope(missingID); err == nil {
		t.Fatal("expected error for missing id")
	}

	missingType := validEnvelope(CmdResume)
	missingType.Type = " "
	if err := ValidateCommandEnvelope(missingType); err == nil {
		t.Fatal("expected error for missing type")
	}

	badTS := validEnvelope(CmdResume)
	badTS.TS = 0
	if err := ValidateCommandEnvelope(badTS); err == nil {
		t.Fatal("expected error for zero timestamp")
	}

	missingFrom := validEnvelope(CmdResume)
	missingFrom.From = ""
	if err := ValidateCommandEnvelope(missingFrom); err == nil {
		t.Fatal("expected error for missing from")
	}
}

func TestBodyRequirement(t *testing.T) {
	noBody := validEnvelope(CmdSeek)
	if err := ValidateCommandEnvelope(noBody); err == nil {
		t.Fatal("expected error for seek without body")
	}

	withBody, err := NewCommand(CmdSeek, SeekBody{PositionMS: 1000})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	withBody.ID = "cmd-2"
	withBody.TS = time.Now().Unix()
	withBody.From = "cli-1"
	if err := ValidateCommandEnvelope(withBody); err != nil {
		t.Fatalf("seek with body rejected: %v", err)
	}

	if CommandRequiresBody(CmdResume) {
		t.Fatal("resume must not require a body")
	}
	if !CommandRequiresBody(CmdLoadTrack) {
		t.Fatal("loadTrack must require a body")
	}
}
