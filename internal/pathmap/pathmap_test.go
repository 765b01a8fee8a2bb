package pathmap

import (
	"path/filepath"
	"testing"
)

func TestToContainer(t *testing.T) {
	tests := []struct {
		name          string
		inputPath     string
		hostRoot      string
		containerRoot string
		want          string
	}{
		{"relative under root", "src/main.go", "/home/u/proj", "/workspace", "/workspace/src/main.go"},
		{"absolute under root", "/home/u/proj/src/main.go", "/home/u/proj", "/workspace", "/workspace/src/main.go"},
		{"root itself", "/home/u/proj", "/home/u/proj", "/workspace", "/workspace"},
		{"escapes root clamps", "/etc/passwd", "/home/u/proj", "/workspace", "/workspace"},
		{"parent traversal clamps", "../../etc/passwd", "/home/u/proj", "/workspace", "/workspace"},
		{"empty hostRoot clamps", "src/main.go", "", "/workspace", "/workspace"},
		{"empty input clamps", "", "/home/u/proj", "/workspace", "/workspace"},
		{"empty containerRoot defaults to slash", "src/main.go", "", "", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToContainer(tt.inputPath, tt.hostRoot, tt.containerRoot)
			if got != tt.want {
				t.Errorf("ToContainer(%q, %q, %q) = %q, want %q", tt.inputPath, tt.hostRoot, tt.containerRoot, got, tt.want)
			}
		})
	}
}

func TestToHost(t *testing.T) {
	tests := []struct {
		name          string
		inputPath     string
		hostRoot      string
		containerRoot string
		want          string
	}{
		{"relative under root", "src/main.go", "/home/u/proj", "/workspace", "/home/u/proj/src/main.go"},
		{"absolute under root", "/workspace/src/main.go", "/home/u/proj", "/workspace", "/home/u/proj/src/main.go"},
		{"root itself", "/workspace", "/home/u/proj", "/workspace", "/home/u/proj"},
		{"escapes root clamps", "/etc/passwd", "/home/u/proj", "/workspace", "/home/u/proj"},
		{"empty containerRoot clamps", "src/main.go", "/home/u/proj", "", "/home/u/proj"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToHost(tt.inputPath, tt.hostRoot, tt.containerRoot)
			if got != tt.want {
				t.Errorf("ToHost(%q, %q, %q) = %q, want %q", tt.inputPath, tt.hostRoot, tt.containerRoot, got, tt.want)
			}
		})
	}
}

func TestToContainer_ToHost_RoundTrip(t *testing.T) {
	hostRoot := "/home/u/proj"
	containerRoot := "/workspace"
	inputs := []string{"src/main.go", "a/b/c.txt", "."}
	for _, in := range inputs {
		containerPath := ToContainer(in, hostRoot, containerRoot)
		hostPath := ToHost(containerPath, hostRoot, containerRoot)
		wantHost := filepath.Join(hostRoot, in)
		if hostPath != wantHost {
			t.Errorf("round trip of %q produced %q, want %q", in, hostPath, wantHost)
		}
		if !IsWithin(hostPath, hostRoot) {
			t.Errorf("round trip of %q produced %q, not within hostRoot", in, hostPath)
		}
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		path string
		root string
		want bool
	}{
		{"/home/u/proj/src", "/home/u/proj", true},
		{"/home/u/proj", "/home/u/proj", true},
		{"/home/u/other", "/home/u/proj", false},
		{"../escape", "/home/u/proj", false},
		{"", "/home/u/proj", false},
		{"src", "", false},
	}
	for _, tt := range tests {
		got := IsWithin(tt.path, tt.root)
		if got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.want)
		}
	}
}
