// Package pathmap maps filesystem paths between a host project directory
// and its mirror inside a sandbox container. Every function here is pure:
// no filesystem access, no allocation beyond the returned string.
package pathmap

import (
	"path/filepath"
	"strings"
)

// ToContainer maps inputPath, resolved against hostRoot if relative, into
// the container's filesystem rooted at containerRoot. Paths that resolve
// outside hostRoot clamp to containerRoot rather than leaking a path the
// mount cannot reach.
func ToContainer(inputPath, hostRoot, containerRoot string) string {
	if containerRoot == "" {
		containerRoot = "/"
	}
	if hostRoot == "" || inputPath == "" {
		return containerRoot
	}

	abs := inputPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(hostRoot, abs)
	} else {
		abs = filepath.Clean(abs)
	}

	rel, ok := relativeWithin(abs, filepath.Clean(hostRoot))
	if !ok {
		return containerRoot
	}
	if rel == "." {
		return containerRoot
	}
	return filepath.Join(containerRoot, rel)
}

// ToHost is the symmetric inverse of ToContainer: it maps a container-side
// path back onto the host project directory, clamping escapes to hostRoot.
func ToHost(inputPath, hostRoot, containerRoot string) string {
	if hostRoot == "" {
		hostRoot = "/"
	}
	if containerRoot == "" || inputPath == "" {
		return hostRoot
	}

	abs := inputPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(containerRoot, abs)
	} else {
		abs = filepath.Clean(abs)
	}

	rel, ok := relativeWithin(abs, filepath.Clean(containerRoot))
	if !ok {
		return hostRoot
	}
	if rel == "." {
		return hostRoot
	}
	return filepath.Join(hostRoot, rel)
}

// IsWithin reports whether path (resolved against root if relative)
// resolves strictly inside, or equal to, root.
func IsWithin(path, root string) bool {
	if root == "" || path == "" {
		return false
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	} else {
		abs = filepath.Clean(abs)
	}
	_, ok := relativeWithin(abs, filepath.Clean(root))
	return ok
}

// relativeWithin returns the slash-cleaned path of abs relative to root,
// and false if abs does not resolve to root or somewhere strictly inside it.
func relativeWithin(abs, root string) (string, bool) {
	abs = filepath.Clean(abs)
	if abs == root {
		return ".", true
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
