package packer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Options configures a Pack call.
type Options struct {
	// Slash is the path separator of the target platform, "/" or `\`.
	// Empty means "/".
	Slash    string
	Template *Template
	// Workers bounds the stat prefetch. Zero means one.
	Workers int
	Logger  zerolog.Logger
}

// Result is everything the producer needs from the packer.
type Result struct {
	Prelude    Prelude
	Segments   []Segment
	Entrypoint string // snapshot path, empty when none
	Files      int
}

// Pack merges records by path, checks them against the collector contract,
// and turns them into an ordered segment list plus a prelude template.
func Pack(ctx context.Context, records []FileRecord, opts Options) (*Result, error) {
	if opts.Template == nil {
		return nil, errors.New("pack: no prelude template")
	}
	slash := opts.Slash
	if slash == "" {
		slash = "/"
	}
	if slash != "/" && slash != `\` {
		return nil, fmt.Errorf("pack: unsupported slash %q", slash)
	}
	log := opts.Logger

	files, err := reduceRecords(records)
	if err != nil {
		return nil, err
	}
	entry, err := findEntrypoint(records)
	if err != nil {
		return nil, err
	}

	snaps := make([]string, len(files))
	seen := make(map[string]string, len(files))
	var statPaths []string
	for i, f := range files {
		snaps[i] = Snapshotify(f.path, slash)
		if prev, ok := seen[snaps[i]]; ok {
			return nil, invalidShape(f.path, StoreStat, "same snapshot path as "+prev)
		}
		seen[snaps[i]] = f.path
		if _, ok := f.stores[StoreStat].(Directly); ok {
			statPaths = append(statPaths, f.path)
		}
	}
	stats, err := prefetchStats(ctx, statPaths, opts.Workers)
	if err != nil {
		return nil, err
	}
	if err := checkLinks(files, stats); err != nil {
		return nil, err
	}

	res := &Result{Files: len(files)}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap := snaps[i]
		for _, store := range storeOrder {
			body, ok := f.stores[store]
			if !ok {
				continue
			}
			seg, err := makeSegment(f.path, snap, store, body, stats)
			if err != nil {
				return nil, err
			}
			res.Segments = append(res.Segments, seg)
		}
		logFile(log, f)
	}

	if entry != "" {
		res.Entrypoint = Snapshotify(entry, slash)
	}
	res.Prelude = opts.Template.Prelude(res.Entrypoint)
	log.Debug().
		Int("files", res.Files).
		Int("segments", len(res.Segments)).
		Str("entrypoint", res.Entrypoint).
		Msg("packed")
	return res, nil
}

// checkLinks rejects directory listings on anything the stat store does not
// describe as a directory.
func checkLinks(files []normalizedFile, stats *statCache) error {
	for _, f := range files {
		if _, ok := f.stores[StoreLinks]; !ok {
			continue
		}
		var st StatSnapshot
		switch b := f.stores[StoreStat].(type) {
		case StatSnapshot:
			st = b
		case Directly:
			cached, ok := stats.get(f.path)
			if !ok {
				return &StatError{Path: f.path, Err: os.ErrNotExist}
			}
			st = cached
		}
		if !st.IsDirectoryValue {
			return invalidShape(f.path, StoreLinks, "links on a non-directory")
		}
	}
	return nil
}

func logFile(log zerolog.Logger, f normalizedFile) {
	if _, ok := f.stores[StoreCode]; ok {
		log.Debug().Str("file", f.path).Msg("compiled code")
	}
	if _, ok := f.stores[StoreContent]; ok {
		switch filepath.Ext(f.path) {
		case ".js", ".json":
			log.Debug().Str("file", f.path).Msg("disclosed source")
		default:
			log.Debug().Str("file", f.path).Msg("asset content")
		}
	}
	if links, ok := f.stores[StoreLinks].(Links); ok {
		log.Debug().Str("file", f.path).Msgf("directory listing, %d item(s)", len(links))
	}
}
