package mock

import (
	"testing"
	"time"

	"github.com/timehop/maestro/pkg/driver"
)

func TestDriver_DeviceInfo_Defaults(t *testing.T) {
	d := New(Config{})
	info, err := d.DeviceInfo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Platform != "ANDROID" {
		t.Errorf("got Platform=%q, want ANDROID", info.Platform)
	}
	if info.WidthGrid != 1080 || info.HeightGrid != 2400 {
		t.Errorf("got grid %dx%d, want 1080x2400", info.WidthGrid, info.HeightGrid)
	}
}

func TestDriver_ViewHierarchy_DefaultFixture(t *testing.T) {
	d := New(Config{})
	h, err := d.ViewHierarchy()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Root.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(h.Root.Children))
	}
}

func TestDriver_FindElementWithTimeout_MatchesFixture(t *testing.T) {
	d := New(Config{})
	filter := driver.Filter{
		Description: "text=Login",
		Match: func(root *driver.Node) *driver.Node {
			for _, c := range root.Children {
				if c.Attributes["text"] == "Login" {
					return c
				}
			}
			return nil
		},
	}
	n, _, err := d.FindElementWithTimeout(time.Second, filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Attributes["resource-id"] != "login-button" {
		t.Errorf("got resource-id=%q, want login-button", n.Attributes["resource-id"])
	}
}

func TestDriver_FindElementWithTimeout_TimesOut(t *testing.T) {
	d := New(Config{})
	filter := driver.Filter{
		Description: "text=Nonexistent",
		Match:       func(root *driver.Node) *driver.Node { return nil },
	}
	_, h, err := d.FindElementWithTimeout(80*time.Millisecond, filter)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if h == nil {
		t.Error("expected hierarchy snapshot even on timeout")
	}
}

func TestDriver_FailCommand_FiresOnce(t *testing.T) {
	d := New(Config{FailCommand: "BackPress"})
	if err := d.BackPress(); err == nil {
		t.Fatal("expected injected failure on first call")
	}
	if err := d.BackPress(); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
}

func TestDriver_LaunchAppAndStopApp_Succeed(t *testing.T) {
	d := New(Config{})
	if err := d.LaunchApp("com.example.app", nil, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.StopApp("com.example.app"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDriver_TakeScreenshot_RecordsPath(t *testing.T) {
	d := New(Config{})
	if err := d.TakeScreenshot("/tmp/shot.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shots := d.Screenshots()
	if len(shots) != 1 || shots[0] != "/tmp/shot.png" {
		t.Errorf("got Screenshots()=%v, want [/tmp/shot.png]", shots)
	}
}
