// Package scanner discovers development projects under a workspace root
// by inspecting the immediate child directories for well known marker
// files.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Project describes one discovered project directory.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	GitBranch   string `json:"git_branch,omitempty"`
}

// markerTypes maps marker files to project types, checked in order so
// the most specific marker wins.
var markerTypes = []struct {
	file string
	kind string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"package.json", "node"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Gemfile", "ruby"},
	{"composer.json", "php"},
	{"Makefile", "make"},
}

// skippedDirs are children never considered projects.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"venv":         true,
	"bin":          true,
	"obj":          true,
}

// Scan inspects the immediate children of root and returns the project
// directories found there. It does not recurse.
func Scan(root string) ([]Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace root: %w", err)
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || skippedDirs[name] {
			continue
		}

		dir := filepath.Join(root, name)
		kind, ok := detectType(dir)
		if !ok {
			continue
		}

		projects = append(projects, Project{
			ID:          uuid.NewString(),
			Name:        name,
			Path:        dir,
			Type:        kind,
			Description: readDescription(dir, kind),
			GitBranch:   readGitBranch(dir),
		})
	}
	return projects, nil
}

// detectType returns the project type implied by the marker files in
// dir, or false when none match.
func detectType(dir string) (string, bool) {
	for _, m := range markerTypes {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.kind, true
		}
	}
	return "", false
}

// readDescription pulls a short description out of the project's
// metadata file when one is cheaply available.
func readDescription(dir, kind string) string {
	switch kind {
	case "node":
		return jsonField(filepath.Join(dir, "package.json"), `"description"`)
	case "rust":
		return tomlField(filepath.Join(dir, "Cargo.toml"), "description")
	case "python":
		return tomlField(filepath.Join(dir, "pyproject.toml"), "description")
	}
	return ""
}

// jsonField extracts a top-level string field from a JSON file with a
// line scan. Good enough for package.json descriptions without parsing
// the whole document.
func jsonField(path, key string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, key) {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			value = strings.Trim(strings.TrimSpace(value), `",`)
			return value
		}
	}
	return ""
}

// tomlField extracts a simple `key = "value"` entry from a TOML file.
func tomlField(path, key string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) != key {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"`)
	}
	return ""
}

// readGitBranch returns the checked out branch name from .git/HEAD, or
// empty when the directory is not a git work tree.
func readGitBranch(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	if ref, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok {
		return ref
	}
	// Detached HEAD: report the abbreviated commit.
	if len(head) >= 7 {
		return head[:7]
	}
	return ""
}
