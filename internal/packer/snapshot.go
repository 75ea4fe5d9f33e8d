package packer

import (
	"path"
	"strings"
)

const snapshotRoot = "snapshot"

// Snapshotify maps a real path to its key in the virtual file system. With
// slash "/" the key is "/snapshot" followed by the forward-slash path. With
// slash `\` the key keeps the drive letter (C: when there is none) and
// inserts `\snapshot` after it.
func Snapshotify(file, slash string) string {
	if slash == `\` {
		return snapshotifyWindows(file)
	}
	p := strings.ReplaceAll(file, `\`, "/")
	if hasDrive(p) {
		p = p[2:]
	}
	p = path.Clean("/" + p)
	if p == "/" {
		return "/" + snapshotRoot
	}
	return "/" + snapshotRoot + p
}

func snapshotifyWindows(file string) string {
	p := strings.ReplaceAll(file, `\`, "/")
	drive := "C:"
	if hasDrive(p) {
		drive = strings.ToUpper(p[:1]) + ":"
		p = p[2:]
	}
	p = path.Clean("/" + p)
	out := drive + `\` + snapshotRoot
	if p != "/" {
		out += strings.ReplaceAll(p, "/", `\`)
	}
	return out
}

func hasDrive(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
