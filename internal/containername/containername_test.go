package containername

import "testing"

func TestSanitizeBasic(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"MyProject", "myproject"},
		{"my project!!", "my-project"},
		{"--leading-and-trailing--", "leading-and-trailing"},
		{"a___b", "a___b"},
		{"a///b", "a-b"},
		{"", DefaultPrefix},
		{"!!!", DefaultPrefix},
		{"Already-Sane_1.0", "already-sane_1.0"},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildName(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		projectID string
		sessionID string
		want      string
	}{
		{"plain ids", "opencode", "myproject123", "sess-abcdef1234", "opencode-myprojec-sess"},
		{"empty prefix falls back", "", "proj", "sess", "opencode-proj-sess"},
		{"empty project and session fall back to default segments", "opencode", "", "", "opencode-opencode-opencode"},
		{"session has multiple segments uses first", "oc", "projectid", "abc-def-ghi", "oc-projecti-abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildName(tt.prefix, tt.projectID, tt.sessionID)
			if got != tt.want {
				t.Errorf("BuildName(%q, %q, %q) = %q, want %q", tt.prefix, tt.projectID, tt.sessionID, got, tt.want)
			}
		})
	}
}

func TestBuildName_Deterministic(t *testing.T) {
	a := BuildName("opencode", "proj-1", "sess-1")
	b := BuildName("opencode", "proj-1", "sess-1")
	if a != b {
		t.Errorf("BuildName should be deterministic, got %q and %q", a, b)
	}
}

func TestDeriveProjectID_DeterministicPerPath(t *testing.T) {
	a := DeriveProjectID("/home/u/p")
	b := DeriveProjectID("/home/u/p")
	if a != b {
		t.Errorf("DeriveProjectID should be deterministic, got %q and %q", a, b)
	}
	if c := DeriveProjectID("/home/u/other"); c == a {
		t.Error("different project roots should derive different ids")
	}
}

func TestDeriveProjectID_CleansPath(t *testing.T) {
	a := DeriveProjectID("/home/u/p/")
	b := DeriveProjectID("/home/u/p")
	if a != b {
		t.Errorf("DeriveProjectID should clean trailing slashes, got %q and %q", a, b)
	}
}
