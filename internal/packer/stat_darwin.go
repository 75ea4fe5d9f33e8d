//go:build darwin

package packer

import (
	"io/fs"
	"syscall"
)

func fillPlatformStat(st *StatSnapshot, fi fs.FileInfo) {
	sys, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || sys == nil {
		return
	}
	st.Dev = uint64(sys.Dev)
	st.Mode = uint32(sys.Mode)
	st.Nlink = uint64(sys.Nlink)
	st.UID = sys.Uid
	st.GID = sys.Gid
	st.Rdev = uint64(sys.Rdev)
	st.Blksize = int64(sys.Blksize)
	st.Ino = sys.Ino
	st.Blocks = sys.Blocks
	st.Atime = timespecMillis(sys.Atimespec)
	st.Mtime = timespecMillis(sys.Mtimespec)
	st.Ctime = timespecMillis(sys.Ctimespec)
	st.Birthtime = timespecMillis(sys.Birthtimespec)
}

func timespecMillis(ts syscall.Timespec) int64 {
	sec, nsec := ts.Unix()
	return sec*1000 + nsec/1e6
}
