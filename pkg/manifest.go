package buildstamp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// DefaultManifest is the package manifest updated by packageManager targets
// that do not name one.
const DefaultManifest = "package.json"

var (
	// ErrNoManifestVersion is returned when a manifest has no version field to update.
	ErrNoManifestVersion = errors.New("no version field found in manifest")
	// ErrManifestDowngrade is returned when the manifest already carries a newer version.
	ErrManifestDowngrade = errors.New("manifest version is newer than the stamped version")
)

// PackageVersioner sets the release version of the package rooted at dir.
type PackageVersioner interface {
	SetPackageVersion(major, minor, patch uint64, dir string) error
}

// ManifestVersioner rewrites the top-level version field of a manifest file
// (package.json, Cargo.toml, pyproject.toml, ...) in place.
type ManifestVersioner struct {
	// Manifest is the file name inside dir. Empty means DefaultManifest.
	Manifest string
}

// SetPackageVersion implements PackageVersioner. The manifest is left
// untouched when its current version is newer than major.minor.patch; a
// prerelease of the same release (1.2.4-rc.1 for 1.2.4) counts as older.
func (m ManifestVersioner) SetPackageVersion(major, minor, patch uint64, dir string) error {
	version := fmt.Sprintf("%d.%d.%d", major, minor, patch)

	name := m.Manifest
	if name == "" {
		name = DefaultManifest
	}
	if dir == "" {
		dir = "."
	}
	return bumpManifestVersion(filepath.Join(dir, name), version)
}

// manifestPattern captures prefix, optional "v", version and suffix so the
// surrounding syntax survives replacement.
type manifestPattern struct {
	name string
	re   *regexp.Regexp
}

const versionExpr = `(v?)(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?)`

var manifestPatterns = []manifestPattern{
	{name: "JSON version field", re: regexp.MustCompile(`^(\s*"version"\s*:\s*")` + versionExpr + `(")`)},
	{name: "TOML version field", re: regexp.MustCompile(`^(\s*version\s*=\s*")` + versionExpr + `(")`)},
	{name: "VERSION assignment", re: regexp.MustCompile(`(?i)^(\s*version\s*[:=]\s*["']?)` + versionExpr + `(["']?)`)},
}

type manifestMatch struct {
	line    int
	start   int
	end     int
	prefix  string
	vprefix string
	version string
	suffix  string
}

// findManifestVersion locates the main version line. JSON files only accept
// shallow indentation so nested dependency entries are skipped; TOML files
// only accept root, [package], [project] and [tool.poetry] sections.
func findManifestVersion(path string, lines []string) *manifestMatch {
	isJSON := strings.HasSuffix(path, ".json")
	isTOML := strings.HasSuffix(path, ".toml")

	section := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isTOML && strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.Trim(trimmed, "[]")
			continue
		}
		if isTOML {
			switch section {
			case "", "package", "project", "tool.poetry":
			default:
				continue
			}
		}
		if isJSON {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if indent > 2 {
				continue
			}
		}

		for _, p := range manifestPatterns {
			m := p.re.FindStringSubmatchIndex(line)
			if m == nil {
				continue
			}
			return &manifestMatch{
				line:    i,
				start:   m[0],
				end:     m[1],
				prefix:  line[m[2]:m[3]],
				vprefix: line[m[4]:m[5]],
				version: line[m[6]:m[7]],
				suffix:  line[m[8]:m[9]],
			}
		}
	}
	return nil
}

func bumpManifestVersion(path, version string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	m := findManifestVersion(path, lines)
	if m == nil {
		return fmt.Errorf("%s: %w", path, ErrNoManifestVersion)
	}

	if semver.Compare("v"+version, "v"+m.version) < 0 {
		return fmt.Errorf("%s: %w: %s < %s", path, ErrManifestDowngrade, version, m.version)
	}

	line := lines[m.line]
	lines[m.line] = line[:m.start] + m.prefix + m.vprefix + version + m.suffix + line[m.end:]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat manifest %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}
