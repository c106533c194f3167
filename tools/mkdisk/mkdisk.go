// Command mkdisk assembles a directory of built ELF program images into a
// single flat disk image the kernel's loader can page in by offset, and
// optionally stays running to rebuild the image whenever a program in the
// source directory changes.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

// formatVersion is the disk image layout's own version, stamped into every
// image header. runTool refuses to build if it is older than
// minSupportedFormat.
var formatVersion = semver.MustParse("1.0.0")

// minSupportedFormat is the oldest layout version runTool accepts for
// formatVersion. An existing image at the output path is not read or
// version-checked; it is truncated and rewritten.
var minSupportedFormat = semver.MustParse("1.0.0")

const (
	magic      = uint32(0xC53D15C0)
	headerSize = 16 // magic, major, minor, patch, each a uint32
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mkdisk] error: %s\n", err.Error())
	os.Exit(1)
}

// program is one ELF image staged into the disk image, in the order it
// was discovered on disk.
type program struct {
	name string
	data []byte
}

func loadPrograms(srcDir string) ([]program, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, err
	}

	var progs []program
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(srcDir, ent.Name()))
		if err != nil {
			return nil, err
		}
		progs = append(progs, program{name: ent.Name(), data: data})
	}

	sort.Slice(progs, func(i, j int) bool { return progs[i].name < progs[j].name })
	return progs, nil
}

// writeImage lays out the header (magic + semver triple), a directory of
// (offset, length) pairs, and the concatenated program payloads, each
// page-aligned so the kernel can map a program's segments directly out of
// the image without a relocating copy.
func writeImage(out *os.File, progs []program) error {
	const pageSize = 4096

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], magic)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(formatVersion.Major()))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(formatVersion.Minor()))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(formatVersion.Patch()))
	if _, err := out.Write(hdr[:]); err != nil {
		return err
	}

	dirSize := len(progs) * 8
	offset := uint32(headerSize) + uint32(dirSize)
	offset = (offset + pageSize - 1) &^ (pageSize - 1)

	dir := make([]byte, dirSize)
	for i, p := range progs {
		binary.LittleEndian.PutUint32(dir[i*8:], offset)
		binary.LittleEndian.PutUint32(dir[i*8+4:], uint32(len(p.data)))
		offset += uint32(len(p.data))
		offset = (offset + pageSize - 1) &^ (pageSize - 1)
	}
	if _, err := out.Write(dir); err != nil {
		return err
	}

	pos, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if padTo := (pos + pageSize - 1) &^ (pageSize - 1); padTo > pos {
		if _, err := out.Seek(padTo-1, io.SeekStart); err != nil {
			return err
		}
		if _, err := out.Write([]byte{0}); err != nil {
			return err
		}
	}

	for _, p := range progs {
		if _, err := out.Write(p.data); err != nil {
			return err
		}
		pos, err := out.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if padTo := (pos + pageSize - 1) &^ (pageSize - 1); padTo > pos {
			if _, err := out.Seek(padTo-1, io.SeekStart); err != nil {
				return err
			}
			if _, err := out.Write([]byte{0}); err != nil {
				return err
			}
		}
	}

	return nil
}

// buildOnce reads every program under srcDir and writes a fresh image to
// outPath, preallocating the destination file's extents up front via
// fallocate so the subsequent sequential writes don't fragment it.
func buildOnce(srcDir, outPath string, sizeHint int64) error {
	progs, err := loadPrograms(srcDir)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	if sizeHint > 0 {
		if err := unix.Fallocate(int(out.Fd()), 0, 0, sizeHint); err != nil {
			// Not every filesystem backing outPath supports fallocate
			// (tmpfs, some network mounts); the image still gets built,
			// just without the preallocation hint.
			fmt.Fprintf(os.Stderr, "[mkdisk] warning: fallocate skipped: %s\n", err.Error())
		}
	}

	if err := writeImage(out, progs); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "[mkdisk] wrote %d program(s), format v%s, to %s\n", len(progs), formatVersion.String(), outPath)
	return nil
}

// watchAndRebuild rebuilds outPath every time srcDir's contents change,
// until the process is killed.
func watchAndRebuild(srcDir, outPath string, sizeHint int64) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(srcDir); err != nil {
		return err
	}

	if err := buildOnce(srcDir, outPath, sizeHint); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := buildOnce(srcDir, outPath, sizeHint); err != nil {
				fmt.Fprintf(os.Stderr, "[mkdisk] rebuild failed: %s\n", err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "[mkdisk] watch error: %s\n", err.Error())
		}
	}
}

func runTool() error {
	srcDir := flag.String("src", "", "directory of built ELF program images")
	outPath := flag.String("out", "disk.img", "path to write the assembled disk image to")
	sizeHint := flag.Int64("size-hint", 0, "bytes to preallocate for the image file via fallocate, 0 to skip")
	watch := flag.Bool("watch", false, "keep running and rebuild whenever -src changes")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "mkdisk: assemble program images into a flat kernel disk image\n\n")
		fmt.Fprint(os.Stderr, "Usage: mkdisk -src <dir> [-out disk.img] [-watch]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *srcDir == "" {
		return errors.New("missing required -src directory")
	}

	if !formatVersion.GreaterThanEqual(minSupportedFormat) {
		return fmt.Errorf("mkdisk: built against unsupported format v%s (need >= v%s)", formatVersion, minSupportedFormat)
	}

	if *watch {
		return watchAndRebuild(*srcDir, *outPath, *sizeHint)
	}
	return buildOnce(*srcDir, *outPath, *sizeHint)
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
