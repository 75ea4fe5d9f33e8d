//go:build !linux && !darwin

package packer

import "io/fs"

func fillPlatformStat(*StatSnapshot, fs.FileInfo) {}
