package packer

import (
	"context"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Unix file type bits, used when the platform gives no raw stat.
const (
	modeTypeDir  = 0o040000
	modeTypeFile = 0o100000
	modeTypeLink = 0o120000
)

// StatSnapshot is the normalized file metadata the loader serves for a path.
// Times are epoch milliseconds.
type StatSnapshot struct {
	Dev              uint64 `json:"dev"`
	Mode             uint32 `json:"mode"`
	Nlink            uint64 `json:"nlink"`
	UID              uint32 `json:"uid"`
	GID              uint32 `json:"gid"`
	Rdev             uint64 `json:"rdev"`
	Blksize          int64  `json:"blksize"`
	Ino              uint64 `json:"ino"`
	Size             int64  `json:"size"`
	Blocks           int64  `json:"blocks"`
	Atime            int64  `json:"atime"`
	Mtime            int64  `json:"mtime"`
	Ctime            int64  `json:"ctime"`
	Birthtime        int64  `json:"birthtime"`
	IsFileValue      bool   `json:"isFileValue"`
	IsDirectoryValue bool   `json:"isDirectoryValue"`
}

// StatFromFileInfo normalizes fi, filling the platform fields when the
// underlying stat is available.
func StatFromFileInfo(fi fs.FileInfo) StatSnapshot {
	mt := millis(fi.ModTime())
	st := StatSnapshot{
		Mode:             unixMode(fi.Mode()),
		Nlink:            1,
		Size:             fi.Size(),
		Atime:            mt,
		Mtime:            mt,
		Ctime:            mt,
		Birthtime:        mt,
		IsFileValue:      fi.Mode().IsRegular(),
		IsDirectoryValue: fi.IsDir(),
	}
	fillPlatformStat(&st, fi)
	return st
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func unixMode(m fs.FileMode) uint32 {
	out := uint32(m.Perm())
	switch {
	case m.IsDir():
		out |= modeTypeDir
	case m&fs.ModeSymlink != 0:
		out |= modeTypeLink
	case m.IsRegular():
		out |= modeTypeFile
	}
	return out
}

// statCache holds one stat per real path for the duration of a Pack call.
type statCache struct {
	mu sync.Mutex
	m  map[string]StatSnapshot
}

func (c *statCache) get(p string) (StatSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[p]
	return st, ok
}

func (c *statCache) put(p string, st StatSnapshot) {
	c.mu.Lock()
	c.m[p] = st
	c.mu.Unlock()
}

// prefetchStats stats every path once using a bounded pool. Every path is
// attempted; when several fail, the first one in input order is reported.
func prefetchStats(ctx context.Context, paths []string, workers int) (*statCache, error) {
	cache := &statCache{m: make(map[string]StatSnapshot, len(paths))}
	if len(paths) == 0 {
		return cache, nil
	}
	if workers < 1 {
		workers = 1
	}
	errs := make([]error, len(paths))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers)
	for i, path := range paths {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fi, err := os.Stat(path)
			if err != nil {
				errs[i] = &StatError{Path: path, Err: err}
				return errs[i]
			}
			cache.put(path, StatFromFileInfo(fi))
			return nil
		})
	}
	waitErr := p.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return cache, nil
}
