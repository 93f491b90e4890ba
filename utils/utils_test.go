package utils

import (
	"os"
	"testing"
)

func withArgs(t *testing.T, args []string) {
	t.Helper()
	saved := os.Args
	os.Args = args
	t.Cleanup(func() { os.Args = saved })
}

func TestParseArguments_EqualsStyle(t *testing.T) {
	withArgs(t, []string{"imagetidy", "dedupe", "--folder=/tmp/imgs", "--dry-run"})

	args := ParseArguments()

	if args["command"] != "dedupe" {
		t.Errorf("expected command dedupe, got %q", args["command"])
	}
	if args["folder"] != "/tmp/imgs" {
		t.Errorf("expected folder /tmp/imgs, got %q", args["folder"])
	}
	if args["dry-run"] != "true" {
		t.Errorf("expected dry-run=true, got %q", args["dry-run"])
	}
}

func TestParseArguments_SpaceStyle(t *testing.T) {
	withArgs(t, []string{"imagetidy", "crop", "--image", "/tmp/a.png", "--margin", "0.05"})

	args := ParseArguments()

	if args["command"] != "crop" {
		t.Errorf("expected command crop, got %q", args["command"])
	}
	if args["image"] != "/tmp/a.png" {
		t.Errorf("expected image /tmp/a.png, got %q", args["image"])
	}
	if args["margin"] != "0.05" {
		t.Errorf("expected margin 0.05, got %q", args["margin"])
	}
}

func TestParseArguments_NoCommand(t *testing.T) {
	withArgs(t, []string{"imagetidy", "--folder=/tmp"})

	args := ParseArguments()

	if _, ok := args["command"]; ok {
		t.Errorf("no command should be detected, got %q", args["command"])
	}
}

func TestParseMargin(t *testing.T) {
	if m, err := ParseMargin("0.25"); err != nil || m != 0.25 {
		t.Errorf("expected 0.25, got %v (%v)", m, err)
	}
	if m, err := ParseMargin("0"); err != nil || m != 0 {
		t.Errorf("zero margin is valid, got %v (%v)", m, err)
	}
	if m, err := ParseMargin("1.5"); err == nil || m != 0.1 {
		t.Errorf("out-of-range margin should fall back to default, got %v (%v)", m, err)
	}
	if _, err := ParseMargin("abc"); err == nil {
		t.Error("non-numeric margin should be rejected")
	}
	if _, err := ParseMargin("-0.1"); err == nil {
		t.Error("negative margin should be rejected")
	}
}

func TestParseMaxDim(t *testing.T) {
	if d, err := ParseMaxDim("640"); err != nil || d != 640 {
		t.Errorf("expected 640, got %v (%v)", d, err)
	}
	if d, err := ParseMaxDim("0"); err == nil || d != 300 {
		t.Errorf("zero should fall back to default, got %v (%v)", d, err)
	}
	if _, err := ParseMaxDim("big"); err == nil {
		t.Error("non-numeric max-dim should be rejected")
	}
}
