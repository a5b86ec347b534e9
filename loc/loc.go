// Package loc tracks source spans attached to IR statements.
package loc

import (
	"fmt"
	"sort"
)

// Loc is a half-open byte span [Loc[0], Loc[1]) into a set of files.
// Offsets start at 1; the zero value means no location.
type Loc [2]int

// IsZero returns whether the Loc is the no-location value.
func (l Loc) IsZero() bool { return l == Loc{} }

// A Location identifies a span in a file by line and column.
// The zero value indicates no location.
type Location struct {
	Path string
	Line [2]int
	Col  [2]int
}

func (l Location) String() string {
	if (l == Location{}) {
		return ""
	}
	if l.Line[0] == l.Line[1] && l.Col[0] == l.Col[1] {
		return fmt.Sprintf("%s:%d.%d", l.Path, l.Line[0], l.Col[0])
	}
	return fmt.Sprintf("%s:%d.%d-%d.%d", l.Path, l.Line[0], l.Col[0], l.Line[1], l.Col[1])
}

// File is the path and newline offsets of one source file.
type File struct {
	path     string
	size     int
	newLines []int
}

// NewFile returns a File for the given contents.
func NewFile(path string, src []byte) *File {
	f := &File{path: path, size: len(src)}
	for i, c := range src {
		if c == '\n' {
			f.newLines = append(f.newLines, i)
		}
	}
	return f
}

func (f *File) Path() string { return f.path }
func (f *File) Len() int     { return f.size }

// Files tracks locations within a set of files laid end to end.
type Files []*File

// Len returns the total length of all files.
func (fs Files) Len() int {
	var n int
	for _, f := range fs {
		n += f.Len()
	}
	return n
}

// Location returns the Location of a Loc.
// The zero Loc returns the zero Location.
func (fs Files) Location(l Loc) Location {
	switch {
	case l.IsZero():
		return Location{}
	case len(fs) == 0:
		panic("no files")
	case l[0] < 1 || l[1]-1 > fs.Len():
		panic("out of range")
	case l[0] > l[1]:
		panic("bad Loc")
	}
	p0, l0, c0 := fs.find(l[0])
	p1, l1, c1 := fs.find(l[1])
	if p0 != p1 {
		panic("multi-file Loc")
	}
	return Location{Path: p0, Line: [2]int{l0, l1}, Col: [2]int{c0, c1}}
}

func (fs Files) find(q int) (string, int, int) {
	q-- // locs start at 1
	var offs int
	var f *File
	for i := range fs {
		f = fs[i]
		if q < offs+f.Len() || q == offs+f.Len() && i == len(fs)-1 {
			break
		}
		offs += f.Len()
	}
	q -= offs
	// Number of newlines strictly before q.
	line := sort.SearchInts(f.newLines, q)
	colStart := -1
	if line > 0 {
		colStart = f.newLines[line-1]
	}
	return f.Path(), line + 1, q - colStart
}
