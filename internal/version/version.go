// Package version derives the release version from the project manifest.
// The manifest is the single authoritative source: tags, branch names, and
// previously published versions are never consulted.
package version

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// manifestPattern matches a strict `version = "MAJOR.MINOR.PATCH"` line.
// The manifest is scanned as plain text, not structurally parsed, so the
// pattern is anchored to the start of a line to avoid picking up version
// fields of nested dependency tables.
var manifestPattern = regexp.MustCompile(`(?m)^version\s*=\s*"(\d+)\.(\d+)\.(\d+)"\s*$`)

// Version is the parsed MAJOR.MINOR.PATCH triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseManifest extracts the version triple from raw manifest content.
// It fails if no strict MAJOR.MINOR.PATCH version field is present.
func ParseManifest(src []byte) (Version, error) {
	m := manifestPattern.FindSubmatch(src)
	if m == nil {
		return Version{}, fmt.Errorf("manifest has no strict `version = \"MAJOR.MINOR.PATCH\"` field")
	}

	// The pattern guarantees digit-only groups; Atoi cannot fail here.
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	patch, _ := strconv.Atoi(string(m[3]))

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// ParseManifestFile reads and parses the manifest at the given path.
func ParseManifestFile(path string) (Version, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Version{}, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}
	v, err := ParseManifest(src)
	if err != nil {
		return Version{}, fmt.Errorf("manifest %q: %w", path, err)
	}
	return v, nil
}

// String returns the full semantic version string, e.g. "2.3.1".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// TagName returns the release tag for the full version, e.g. "v2.3.1".
func (v Version) TagName() string {
	return "v" + v.String()
}

// Tags returns the three tracking tags derived from the version, most
// specific first: vMAJOR.MINOR.PATCH, vMAJOR.MINOR, vMAJOR.
func (v Version) Tags() []string {
	return []string{
		fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch),
		fmt.Sprintf("v%d.%d", v.Major, v.Minor),
		fmt.Sprintf("v%d", v.Major),
	}
}
