package buildstamp

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// stampDocument is the structured form shared by the json, yaml and s3 targets.
type stampDocument struct {
	Major uint64 `json:"major" yaml:"major"`
	Minor uint64 `json:"minor" yaml:"minor"`
	Patch uint64 `json:"patch" yaml:"patch"`
	Build uint64 `json:"build" yaml:"build"`
	Text  string `json:"text" yaml:"text"`
}

func newStampDocument(r Record) stampDocument {
	return stampDocument{
		Major: r.Major,
		Minor: r.Minor,
		Patch: r.Patch,
		Build: r.Build,
		Text:  r.Text(),
	}
}

func renderText(r Record) []byte {
	return []byte(r.Text() + "\n")
}

// renderJSON produces a single-line JSON object terminated by a newline.
func renderJSON(r Record) ([]byte, error) {
	data, err := json.Marshal(newStampDocument(r))
	if err != nil {
		return nil, fmt.Errorf("encoding json stamp: %w", err)
	}
	return append(data, '\n'), nil
}

func renderYAML(r Record) ([]byte, error) {
	data, err := yaml.Marshal(newStampDocument(r))
	if err != nil {
		return nil, fmt.Errorf("encoding yaml stamp: %w", err)
	}
	return data, nil
}

// renderModule produces an ES/TypeScript module exporting a version object.
func renderModule(r Record) []byte {
	return []byte(fmt.Sprintf(`export const version = {
    major: %d,
    minor: %d,
    patch: %d,
    build: %d,
    text: '%s'
};
`, r.Major, r.Minor, r.Patch, r.Build, r.Text()))
}

// renderGo produces a Go source file for the package that owns path.
func renderGo(path string, r Record) []byte {
	pkgName, err := goPackageName(path)
	if err != nil {
		pkgName = "version"
	}
	return []byte(fmt.Sprintf(`// Code generated by buildstamp. DO NOT EDIT.

package %s

const (
	Major = %d
	Minor = %d
	Patch = %d
	Build = %d
)

var (
	Version = "%s"
)
`, pkgName, r.Major, r.Minor, r.Patch, r.Build, r.Text()))
}

var packageClause = regexp.MustCompile(`(?m)^package\s+(\w+)`)

// goPackageName returns the package clause of path if it exists, otherwise the
// package of the first non-test Go file next to it, otherwise "version".
func goPackageName(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if m := packageClause.FindSubmatch(data); m != nil {
			return string(m[1]), nil
		}
	}

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "version", nil
		}
		return "", fmt.Errorf("reading directory %q: %w", dir, err)
	}
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.PackageClauseOnly)
		if err != nil {
			continue
		}
		return f.Name.Name, nil
	}
	return "version", nil
}
