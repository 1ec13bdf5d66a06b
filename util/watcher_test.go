package util

import (
	"os"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, delist int) {
	t.Helper()

	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
moderation:
  delistThreshold: ` + string(rune('0'+delist)) + `
  rejectThreshold: 9
`
	if err := os.WriteFile("config.yaml", []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
}

func TestConfigHolderReplace(t *testing.T) {
	first := &AppConfig{}
	first.Moderation.DelistThreshold = 5

	holder := NewConfigHolder(first)

	if holder.Conf() != first {
		t.Error("Conf should return the stored config")
	}

	second := &AppConfig{}
	second.Moderation.DelistThreshold = 7
	holder.Replace(second)

	if holder.Conf() != second {
		t.Error("Replace should swap the config snapshot")
	}

	if holder.Conf().Moderation.DelistThreshold != 7 {
		t.Errorf("Expected threshold 7 after replace, got %d", holder.Conf().Moderation.DelistThreshold)
	}
}

func TestPollOnceReloadsOnChange(t *testing.T) {
	writeTestConfig(t, 5)
	defer os.Remove("config.yaml")

	initial := &AppConfig{}
	initial.Moderation.DelistThreshold = 1
	holder := NewConfigHolder(initial)

	// Zero lastMod: any existing file counts as changed
	mod := holder.pollOnce("config.yaml", time.Time{})
	if mod.IsZero() {
		t.Fatal("pollOnce should return the file modification time")
	}

	if holder.Conf().Moderation.DelistThreshold != 5 {
		t.Errorf("Expected reloaded threshold 5, got %d", holder.Conf().Moderation.DelistThreshold)
	}

	// Unchanged mtime: nothing reloads
	current := holder.Conf()
	mod2 := holder.pollOnce("config.yaml", mod)
	if !mod2.Equal(mod) {
		t.Errorf("Expected unchanged mod time, got %v != %v", mod2, mod)
	}
	if holder.Conf() != current {
		t.Error("pollOnce should not replace the config when the file is unchanged")
	}

	// Rewrite with a newer mtime: reload picks up the new value
	writeTestConfig(t, 8)
	newer := mod.Add(2 * time.Second)
	if err := os.Chtimes("config.yaml", newer, newer); err != nil {
		t.Fatalf("Failed to bump mtime: %v", err)
	}

	holder.pollOnce("config.yaml", mod)
	if holder.Conf().Moderation.DelistThreshold != 8 {
		t.Errorf("Expected reloaded threshold 8, got %d", holder.Conf().Moderation.DelistThreshold)
	}
}

func TestPollOnceMissingFile(t *testing.T) {
	holder := NewConfigHolder(&AppConfig{})

	before := holder.Conf()
	mod := holder.pollOnce("does-not-exist.yaml", time.Time{})

	if !mod.IsZero() {
		t.Errorf("Expected zero mod time for missing file, got %v", mod)
	}
	if holder.Conf() != before {
		t.Error("Missing file should leave the config untouched")
	}
}
