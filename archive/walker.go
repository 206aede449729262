// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk, file is the entry which satisfies match condition. Returning
// fs.SkipAll stops the walk without error, any other error stops processing
// and is returned by Walk.
type WalkFunc func(archive string, file *zip.File) error

// MatchFunc selects archive entries by name.
type MatchFunc func(name string) bool

// Prefix matches entries with names starting with p.
func Prefix(p string) MatchFunc {
	return func(name string) bool { return strings.HasPrefix(name, p) }
}

// Ext matches entries with extension ext, case insensitive.
func Ext(ext string) MatchFunc {
	return func(name string) bool { return strings.EqualFold(path.Ext(name), ext) }
}

// Walk walks all files in the archive which satisfy match condition, in
// archive order, calling walkFn for each item. Nil match visits every file.
// Archives with path traversal components ("..") or absolute paths in entry
// names are rejected to prevent Zip Slip attacks.
func Walk(archive string, match MatchFunc, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || (match != nil && !match(name)) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			if errors.Is(err, fs.SkipAll) {
				return nil
			}
			return err
		}
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}
