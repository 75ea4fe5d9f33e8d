package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"cuelang.org/go/cue"
)

const ActionPack = "pack"

// Job is a parsed pack configuration. Paths are absolute once ParseJob
// returns.
type Job struct {
	ConfigVersion string
	Action        string
	// Dir is the directory of the config file; relative paths resolve
	// against it.
	Dir      string
	Input    Input
	Target   Target
	Compiler Compiler
	Classify Classify
	Manifest Manifest
	Workers  Workers
}

// Input describes the application tree to collect.
type Input struct {
	Root           string
	Entrypoint     string
	NoGitignore    bool
	Exclude        []string
	HasEntrypoint  bool
	HasNoGitignore bool
	HasExclude     bool
}

// Target describes the host binary and the container to produce.
type Target struct {
	Host       string
	Output     string
	Options    []string
	Slash      string
	HasOptions bool
	HasSlash   bool
}

// Compiler configures the bytecode compiler subprocess.
type Compiler struct {
	Enabled       bool
	Program       string
	Args          []string
	TimeoutMs     int
	Extensions    []string
	HasEnabled    bool
	HasProgram    bool
	HasArgs       bool
	HasTimeout    bool
	HasExtensions bool
}

// Classify holds the optional Lua classifier.
type Classify struct {
	Inline       string
	TimeoutMs    int
	HasInline    bool
	HasTimeoutMs bool
}

// Manifest holds the optional build manifest location.
type Manifest struct {
	Out    string
	HasOut bool
}

// Workers bounds the stat prefetch.
type Workers struct {
	Count    int
	HasCount bool
}

// ParseJob loads a CUE pack config, checks the required fields and resolves
// relative paths.
func ParseJob(path string) (Job, error) {
	v, err := compileCUE(path)
	if err != nil {
		return Job{}, err
	}
	if err := requireStringField(v, "configVersion"); err != nil {
		return Job{}, err
	}
	if err := requireStringField(v, "action"); err != nil {
		return Job{}, err
	}
	var j Job
	j.ConfigVersion, _ = lookupString(v, "configVersion")
	j.Action, _ = lookupString(v, "action")
	if !IsSupportedConfigVersion(j.ConfigVersion) {
		return Job{}, fmt.Errorf("unsupported configVersion: %q (supported: %s)", j.ConfigVersion, SupportedConfigVersionsCSV())
	}
	if j.Action != ActionPack {
		return Job{}, fmt.Errorf("unsupported action: %q (expected %q)", j.Action, ActionPack)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Job{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	j.Dir = filepath.Dir(abs)

	if j.Input, err = parseInputSection(v); err != nil {
		return Job{}, err
	}
	if j.Target, err = parseTargetSection(v); err != nil {
		return Job{}, err
	}
	if j.Compiler, err = parseCompilerSection(v); err != nil {
		return Job{}, err
	}
	if j.Classify, err = parseClassifySection(v); err != nil {
		return Job{}, err
	}
	j.Manifest = parseManifestSection(v)
	if j.Workers, err = parseWorkersSection(v); err != nil {
		return Job{}, err
	}
	j.resolvePaths()
	return j, nil
}

func (j *Job) resolvePaths() {
	j.Input.Root = j.resolve(j.Input.Root)
	if j.Input.HasEntrypoint {
		if !filepath.IsAbs(j.Input.Entrypoint) {
			j.Input.Entrypoint = filepath.Join(j.Input.Root, j.Input.Entrypoint)
		}
		j.Input.Entrypoint = filepath.Clean(j.Input.Entrypoint)
	}
	j.Target.Host = j.resolve(j.Target.Host)
	j.Target.Output = j.resolve(j.Target.Output)
	if j.Manifest.HasOut {
		j.Manifest.Out = j.resolve(j.Manifest.Out)
	}
}

func (j *Job) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(j.Dir, p)
}

func requireStringField(v cue.Value, name string) error {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return fmt.Errorf("missing required field: %s", name)
	}
	if f.Kind() != cue.StringKind {
		return fmt.Errorf("invalid type for field: %s (expected string)", name)
	}
	return nil
}

var errEmpty = errors.New("must not be empty")
