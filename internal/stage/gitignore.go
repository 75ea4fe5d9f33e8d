package stage

import (
	"os"
	"path/filepath"
	"strings"

	gitgitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreMatcher decides which entries under root are left out. Patterns from
// .gitignore files apply below the directory holding them; exclude patterns
// use the same syntax and apply from the root.
type ignoreMatcher struct {
	root        string
	noGitignore bool
	exclude     []gitgitignore.Pattern
	// per directory (slash form, "" for root) patterns read so far
	cache map[string][]gitgitignore.Pattern
}

func newIgnoreMatcher(root string, noGitignore bool, exclude []string) *ignoreMatcher {
	m := &ignoreMatcher{root: root, noGitignore: noGitignore, cache: map[string][]gitgitignore.Pattern{}}
	for _, line := range exclude {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.exclude = append(m.exclude, gitgitignore.ParsePattern(line, nil))
	}
	return m
}

// Match reports whether rel (slash separated, relative to root) is ignored.
func (m *ignoreMatcher) Match(rel string, isDir bool) bool {
	comps := splitRel(rel)
	if len(comps) == 0 {
		return false
	}
	if len(m.exclude) > 0 && gitgitignore.NewMatcher(m.exclude).Match(comps, isDir) {
		return true
	}
	if m.noGitignore {
		return false
	}
	var patterns []gitgitignore.Pattern
	for i := 0; i < len(comps); i++ {
		patterns = append(patterns, m.patternsIn(comps[:i])...)
	}
	if len(patterns) == 0 {
		return false
	}
	return gitgitignore.NewMatcher(patterns).Match(comps, isDir)
}

// patternsIn reads the .gitignore of the directory at dir components.
func (m *ignoreMatcher) patternsIn(dir []string) []gitgitignore.Pattern {
	key := strings.Join(dir, "/")
	if p, ok := m.cache[key]; ok {
		return p
	}
	var patterns []gitgitignore.Pattern
	b, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(key), ".gitignore"))
	if err == nil {
		for _, line := range strings.Split(string(b), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitgitignore.ParsePattern(line, append([]string(nil), dir...)))
		}
	}
	m.cache[key] = patterns
	return patterns
}

func splitRel(rel string) []string {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}
