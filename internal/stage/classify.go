package stage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/flarebyte/sealpack/internal/packer"
)

const classifyStage = "classify"

type verdict int

const (
	verdictKeep verdict = iota
	verdictCode
	verdictContent
	verdictSkip
)

// classify: an optional Lua script sees each file's root-relative path and
// current store and may move it between code and content or drop it.
func classifyRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	job, err := in.job()
	if err != nil {
		return Envelope{}, err
	}
	if !job.Classify.HasInline {
		return in, nil
	}
	code := job.Classify.Inline
	if !containsReturn(code) {
		code = "return (" + code + ")"
	}
	timeout := time.Duration(job.Classify.TimeoutMs) * time.Millisecond

	out := in
	out.Records = append([]packer.FileRecord(nil), in.Records...)
	skipped := map[string]bool{}
	for i, r := range out.Records {
		if r.Discard || (r.Store != packer.StoreCode && r.Store != packer.StoreContent) {
			continue
		}
		rel, err := filepath.Rel(job.Input.Root, r.Path)
		if err != nil {
			rel = r.Path
		}
		rel = filepath.ToSlash(rel)
		ret, err := runSandboxed(ctx, classifyStage, rel, timeout,
			map[string]string{"path": rel, "store": r.Store.String()}, code)
		if err != nil {
			return Envelope{}, fmt.Errorf("%s: %s: %w", classifyStage, rel, err)
		}
		v, err := toVerdict(ret)
		if err != nil {
			return Envelope{}, fmt.Errorf("%s: %s: %w", classifyStage, rel, err)
		}
		switch v {
		case verdictCode:
			if !job.Compiler.Enabled {
				return Envelope{}, fmt.Errorf("%s: %s: classified as code but the compiler is disabled", classifyStage, rel)
			}
			out.Records[i].Store = packer.StoreCode
		case verdictContent:
			out.Records[i].Store = packer.StoreContent
		case verdictSkip:
			if r.Entrypoint {
				return Envelope{}, fmt.Errorf("%s: %s: the entrypoint cannot be skipped", classifyStage, rel)
			}
			skipped[r.Path] = true
		}
	}
	if len(skipped) > 0 {
		dropSkipped(out.Records, skipped)
	}
	deps.Logger.Debug().Int("skipped", len(skipped)).Msg("classified")
	return out, nil
}

// dropSkipped discards every record of a skipped file and removes it from
// its parent's listing.
func dropSkipped(records []packer.FileRecord, skipped map[string]bool) {
	for i, r := range records {
		if skipped[r.Path] {
			records[i].Discard = true
			continue
		}
		links, ok := r.Body.(packer.Links)
		if !ok || r.Store != packer.StoreLinks {
			continue
		}
		kept := make(packer.Links, 0, len(links))
		for _, name := range links {
			if !skipped[filepath.Join(r.Path, name)] {
				kept = append(kept, name)
			}
		}
		records[i].Body = kept
	}
}

func toVerdict(v lua.LValue) (verdict, error) {
	switch x := v.(type) {
	case *lua.LNilType:
		return verdictKeep, nil
	case lua.LBool:
		if x {
			return verdictKeep, nil
		}
		return verdictSkip, nil
	case lua.LString:
		switch string(x) {
		case "code":
			return verdictCode, nil
		case "content":
			return verdictContent, nil
		case "skip":
			return verdictSkip, nil
		}
	}
	return verdictKeep, fmt.Errorf("unexpected classifier result %q (want \"code\", \"content\", \"skip\" or a boolean)", v.String())
}

func init() { Register(classifyStage, classifyRunner) }
