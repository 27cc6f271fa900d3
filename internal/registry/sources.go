package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// =============================================================================
// STATIC SOURCE
// =============================================================================

// StaticSource serves a pre-parsed collection of specs. This is the form the
// detection core itself consumes; the file-reading sources below are
// adapters that produce the same capability.
type StaticSource struct {
	SourceName string
	Specs      []types.CommandSpec
}

func (s StaticSource) Name() string {
	if s.SourceName != "" {
		return s.SourceName
	}
	return "static"
}

func (s StaticSource) Declarations() ([]types.CommandSpec, error) {
	return s.Specs, nil
}

// =============================================================================
// MARKDOWN FRONTMATTER SOURCE
// =============================================================================

// MarkdownDirSource scans a plugin commands directory for *.md files and
// extracts declarations from YAML frontmatter:
//
//	---
//	name: sc:analyze
//	description: analyze code
//	keywords: [analyze my code, review the codebase]
//	patterns: ['\bcode (quality|review)\b']
//	prototypes: [analyze this code, check code quality]
//	skill: sc:analyze
//	---
//
// Files without frontmatter or without a name are skipped, not fatal.
type MarkdownDirSource struct {
	Dir string
}

// frontmatter is the declaration shape inside a command markdown file.
type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Patterns    []string `yaml:"patterns"`
	Prototypes  []string `yaml:"prototypes"`
	Skill       string   `yaml:"skill"`
}

var frontmatterRe = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n`)

func (s MarkdownDirSource) Name() string {
	return "markdown:" + s.Dir
}

func (s MarkdownDirSource) Declarations() ([]types.CommandSpec, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // no command dir, no declarations
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files) // stable declaration order across platforms

	var specs []types.CommandSpec
	for _, name := range files {
		path := filepath.Join(s.Dir, name)
		spec, ok := parseMarkdownCommand(path)
		if !ok {
			continue
		}
		specs = append(specs, spec)
	}

	logging.RegistryDebug("markdown source %s: %d of %d files declared commands", s.Dir, len(specs), len(files))
	return specs, nil
}

func parseMarkdownCommand(path string) (types.CommandSpec, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		logging.Get(logging.CategoryRegistry).Warn("could not read %s: %v", path, err)
		return types.CommandSpec{}, false
	}

	m := frontmatterRe.FindSubmatch(content)
	if m == nil {
		return types.CommandSpec{}, false
	}

	var fm frontmatter
	if err := yaml.Unmarshal(m[1], &fm); err != nil {
		logging.Get(logging.CategoryRegistry).Warn("bad frontmatter in %s: %v", path, err)
		return types.CommandSpec{}, false
	}
	if fm.Name == "" {
		return types.CommandSpec{}, false
	}

	return types.CommandSpec{
		ID:                  canonicalID(fm.Name),
		DisplayAction:       fm.Description,
		TriggerPhrases:      fm.Keywords,
		TriggerPatterns:     fm.Patterns,
		PrototypeUtterances: fm.Prototypes,
		SkillAlias:          fm.Skill,
	}, true
}

// canonicalID normalizes declaration names to slash-command form.
// "sc:analyze" -> "/sc:analyze"; skill: and agent: prefixes pass through.
func canonicalID(name string) string {
	if strings.HasPrefix(name, "/") ||
		strings.HasPrefix(name, "skill:") ||
		strings.HasPrefix(name, "agent:") {
		return name
	}
	return "/" + name
}

// =============================================================================
// MAPPINGS JSON SOURCE
// =============================================================================

// MappingsJSONSource reads the generated intent_mappings.json shape:
//
//	{"commands": {"/sc:analyze": {"keywords": [...], "patterns": [...],
//	              "prototypes": [...], "description": "...", "skill": "..."}},
//	 "skills":   {"skill:ctx:worktree": {...}}}
type MappingsJSONSource struct {
	Path string
}

type mappingsFile struct {
	Commands map[string]mappingEntry `json:"commands"`
	Skills   map[string]mappingEntry `json:"skills"`
}

type mappingEntry struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Patterns    []string `json:"patterns"`
	Prototypes  []string `json:"prototypes"`
	Skill       string   `json:"skill"`
}

func (s MappingsJSONSource) Name() string {
	return "mappings:" + s.Path
}

func (s MappingsJSONSource) Declarations() ([]types.CommandSpec, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // optional file
		}
		return nil, fmt.Errorf("read mappings: %w", err)
	}

	var mf mappingsFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse mappings %s: %w", s.Path, err)
	}

	var specs []types.CommandSpec
	for _, section := range []map[string]mappingEntry{mf.Commands, mf.Skills} {
		ids := make([]string, 0, len(section))
		for id := range section {
			ids = append(ids, id)
		}
		sort.Strings(ids) // JSON maps are unordered; keep declarations stable

		for _, id := range ids {
			e := section[id]
			specs = append(specs, types.CommandSpec{
				ID:                  canonicalID(id),
				DisplayAction:       e.Description,
				TriggerPhrases:      e.Keywords,
				TriggerPatterns:     e.Patterns,
				PrototypeUtterances: e.Prototypes,
				SkillAlias:          e.Skill,
			})
		}
	}

	return specs, nil
}
