package stage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flarebyte/sealpack/internal/config"
	"github.com/flarebyte/sealpack/internal/packer"
)

const discoverStage = "discover-app-files"

// discover-app-files: walk input.root in name order and emit the records the
// packer expects: LINKS and STAT for every directory, CONTENT or CODE and
// STAT for every regular file.
func discoverAppFilesRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	job, err := in.job()
	if err != nil {
		return Envelope{}, err
	}
	root := job.Input.Root
	fi, err := os.Stat(root)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", discoverStage, err)
	}
	if !fi.IsDir() {
		return Envelope{}, fmt.Errorf("%s: %s is not a directory", discoverStage, root)
	}
	d := newDiscoverer(job, deps.Logger)
	if err := d.walk(ctx, root, "."); err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", discoverStage, err)
	}
	if job.Input.HasEntrypoint && !d.sawEntry {
		return Envelope{}, fmt.Errorf("%s: entrypoint %s is not a collected file", discoverStage, job.Input.Entrypoint)
	}
	deps.Logger.Debug().Int("records", len(d.records)).Str("root", root).Msg("discovered")
	out := in
	out.Records = d.records
	return out, nil
}

type discoverer struct {
	job      *config.Job
	log      zerolog.Logger
	ignore   *ignoreMatcher
	skip     map[string]bool
	tmpStem  string
	codeExt  map[string]bool
	records  []packer.FileRecord
	sawEntry bool
}

func newDiscoverer(job *config.Job, log zerolog.Logger) *discoverer {
	d := &discoverer{
		job:     job,
		log:     log,
		ignore:  newIgnoreMatcher(job.Input.Root, job.Input.NoGitignore, job.Input.Exclude),
		skip:    map[string]bool{job.Target.Output: true},
		tmpStem: "." + filepath.Base(job.Target.Output) + ".",
		codeExt: map[string]bool{},
	}
	if job.Manifest.HasOut {
		d.skip[job.Manifest.Out] = true
	}
	if job.Compiler.Enabled {
		for _, e := range job.Compiler.Extensions {
			d.codeExt[e] = true
		}
	}
	return d
}

type child struct {
	name  string
	abs   string
	rel   string
	isDir bool
}

func (d *discoverer) walk(ctx context.Context, abs, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	var kept []child
	for _, e := range entries {
		c := child{name: e.Name(), abs: filepath.Join(abs, e.Name()), rel: path.Join(rel, e.Name())}
		if d.skip[c.abs] || d.isTempOutput(c.name) {
			continue
		}
		ok, err := d.classifyEntry(e, &c)
		if err != nil {
			return err
		}
		if !ok || d.ignore.Match(c.rel, c.isDir) {
			continue
		}
		kept = append(kept, c)
	}

	names := make(packer.Links, 0, len(kept))
	for _, c := range kept {
		names = append(names, c.name)
	}
	d.records = append(d.records,
		packer.FileRecord{Path: abs, Store: packer.StoreLinks, Body: names},
		packer.FileRecord{Path: abs, Store: packer.StoreStat, Body: packer.Directly{}},
	)
	for _, c := range kept {
		if c.isDir {
			if err := d.walk(ctx, c.abs, c.rel); err != nil {
				return err
			}
			continue
		}
		d.addFile(c.abs)
	}
	return nil
}

// classifyEntry fills isDir and reports whether the entry is collectable.
// Symlinks to files are followed; symlinked directories and special files
// are left out.
func (d *discoverer) classifyEntry(e fs.DirEntry, c *child) (bool, error) {
	typ := e.Type()
	switch {
	case typ&fs.ModeSymlink != 0:
		st, err := os.Stat(c.abs)
		if err != nil {
			d.log.Warn().Str("file", c.abs).Err(err).Msg("skipping broken symlink")
			return false, nil
		}
		if !st.Mode().IsRegular() {
			d.log.Debug().Str("file", c.abs).Msg("skipping symlink to non-regular file")
			return false, nil
		}
		return true, nil
	case typ.IsDir():
		c.isDir = true
		return true, nil
	case typ.IsRegular():
		return true, nil
	default:
		return false, nil
	}
}

func (d *discoverer) addFile(abs string) {
	store := packer.StoreContent
	if d.codeExt[filepath.Ext(abs)] {
		store = packer.StoreCode
	}
	entry := d.job.Input.HasEntrypoint && abs == d.job.Input.Entrypoint
	if entry {
		d.sawEntry = true
	}
	d.records = append(d.records,
		packer.FileRecord{Path: abs, Store: store, Body: packer.Directly{}, Entrypoint: entry},
		packer.FileRecord{Path: abs, Store: packer.StoreStat, Body: packer.Directly{}},
	)
}

func (d *discoverer) isTempOutput(name string) bool {
	return strings.HasPrefix(name, d.tmpStem) && strings.HasSuffix(name, ".tmp")
}

func init() { Register(discoverStage, discoverAppFilesRunner) }
