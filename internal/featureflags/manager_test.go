package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		if !m.Enabled(name, 1) {
			t.Fatalf("%s: expected enabled", name)
		}
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		if m.Enabled(name, 1) {
			t.Fatalf("%s: expected disabled", name)
		}
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,over=250%")

	if !m.Enabled("always", 1) || !m.Enabled("over", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	enabled := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			enabled++
		}
	}
	if enabled < 100 || enabled > 400 {
		t.Fatalf("25%% rollout enabled %d of 1000 users", enabled)
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestDefaultsForKnownFlags(t *testing.T) {
	m := NewManager("")
	if !m.Enabled(PostImages, 0) || !m.Enabled(ThreadedComments, 0) {
		t.Fatal("known flags default to on")
	}
	if len(m.Raw()) != 0 {
		t.Fatalf("defaults must not appear in Raw: %#v", m.Raw())
	}

	m = NewManager("threaded_comments=off")
	if m.Enabled(ThreadedComments, 7) {
		t.Fatal("configured value overrides the default")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,w=maybe ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d: %#v", len(raw), raw)
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot(123)
	if len(snap) != 3+len(Defaults) {
		t.Fatalf("expected snapshot size %d, got %d", 3+len(Defaults), len(snap))
	}
	if !snap[PostImages] {
		t.Fatal("snapshot should include defaults")
	}
}
