package bottext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	text, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if text.Welcome != Defaults().Welcome {
		t.Errorf("expected defaults, got %q", text.Welcome)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/no/such/file.yaml"); err == nil {
		t.Fatal("missing override file should be an error")
	}
}

func TestLoadOverridesKeepUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.yaml")
	yaml := "message_welcome: Willkommen!\njoin_group: 'Tritt bei: {link}'\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	text, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if text.Welcome != "Willkommen!" {
		t.Errorf("Welcome = %q", text.Welcome)
	}
	if got := text.FormatJoinGroup("https://t.me/+x"); got != "Tritt bei: https://t.me/+x" {
		t.Errorf("FormatJoinGroup = %q", got)
	}
	// Untouched keys keep their defaults.
	if text.AlreadyJoined != Defaults().AlreadyJoined {
		t.Errorf("AlreadyJoined lost its default: %q", text.AlreadyJoined)
	}
}

func TestPlaceholderFilling(t *testing.T) {
	text := Defaults()
	got := text.FormatPlatformChoice("twitch", "https://id.twitch.tv/authorize")
	if !strings.Contains(got, "twitch") || !strings.Contains(got, "https://id.twitch.tv/authorize") {
		t.Errorf("FormatPlatformChoice left placeholders: %q", got)
	}
	if strings.Contains(got, "{platform}") || strings.Contains(got, "{link}") {
		t.Errorf("unfilled placeholder in %q", got)
	}
	if got := text.FormatWelcomeToGroup("alice"); !strings.Contains(got, "alice") {
		t.Errorf("FormatWelcomeToGroup = %q", got)
	}
}

func TestCommandListNamesEveryCommand(t *testing.T) {
	list := Defaults().CommandList()
	for _, cmd := range []string{"/start", "/add_me", "/add_me_twitch", "/add_me_patreon"} {
		if !strings.Contains(list, cmd) {
			t.Errorf("command list missing %s", cmd)
		}
	}
}
