// Package layout computes the memory layout of flowgraph types.
//
// Structs are laid out sequentially with padding for alignment.
// A union is a tag at offset 0, sized to hold its largest discriminant,
// followed by the payload of its active case
// at the tag size rounded up to the union's alignment.
package layout

import (
	"fmt"
	"sync"

	"github.com/eaburns/mir/flowgraph"
)

// Info is the layout of a type.
type Info struct {
	Size  int64
	Align int64

	// FieldOffs are the offsets of the fields of a struct.
	FieldOffs []int64

	// Stride is the distance between elements of an array.
	Stride int64

	// TagSize is the size of the tag of a union.
	TagSize int64
	// PayloadOffset is the offset of the payload of a union.
	PayloadOffset int64
	// VariantSizes are the sizes of the cases of a union,
	// tag included, in case order.
	VariantSizes []int64
}

// Calculator computes and caches layouts.
// It is safe for concurrent use.
type Calculator struct {
	// PointerSize is the size of an address in bytes.
	PointerSize int64

	mu    sync.Mutex
	cache map[flowgraph.Type]cached
}

type cached struct {
	info Info
	err  error
}

// NewCalculator returns a Calculator for a 64-bit target.
func NewCalculator() *Calculator {
	return &Calculator{
		PointerSize: 8,
		cache:       make(map[flowgraph.Type]cached),
	}
}

// Layout implements flowgraph.LayoutOracle.
func (c *Calculator) Layout(t flowgraph.Type) (*flowgraph.VariantLayout, error) {
	info, err := c.Info(t)
	if err != nil {
		return nil, err
	}
	return &flowgraph.VariantLayout{
		TotalSize:    info.Size,
		VariantSizes: append([]int64(nil), info.VariantSizes...),
	}, nil
}

// Info returns the layout of t.
// The error is a *flowgraph.LayoutError.
func (c *Calculator) Info(t flowgraph.Type) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[flowgraph.Type]cached)
	}
	return c.info(t, make(map[flowgraph.Type]bool))
}

func (c *Calculator) info(t flowgraph.Type, onPath map[flowgraph.Type]bool) (Info, error) {
	if e, ok := c.cache[t]; ok {
		return e.info, e.err
	}
	if onPath[t] {
		return Info{}, &flowgraph.LayoutError{Type: t, Reason: "recursive type"}
	}
	onPath[t] = true
	defer delete(onPath, t)

	var info Info
	var err error
	switch t := t.(type) {
	case *flowgraph.IntType:
		info, err = scalar(t, int64(t.Size))
	case *flowgraph.FloatType:
		info, err = scalar(t, int64(t.Size))
	case *flowgraph.AddrType:
		info = Info{Size: c.PointerSize, Align: c.PointerSize}
	case *flowgraph.ArrayType:
		info, err = c.array(t, onPath)
	case *flowgraph.StructType:
		info, err = c.structure(t, onPath)
	case *flowgraph.UnionType:
		info, err = c.union(t, onPath)
	case *flowgraph.ParamType:
		err = &flowgraph.LayoutError{Type: t, Reason: "type parameter " + t.Name}
	default:
		err = &flowgraph.LayoutError{Type: t, Reason: fmt.Sprintf("unknown type %T", t)}
	}
	c.cache[t] = cached{info: info, err: err}
	return info, err
}

func scalar(t flowgraph.Type, bits int64) (Info, error) {
	switch bits {
	case 8, 16, 32, 64:
		return Info{Size: bits / 8, Align: bits / 8}, nil
	}
	return Info{}, &flowgraph.LayoutError{Type: t, Reason: fmt.Sprintf("bad size %d", bits)}
}

func (c *Calculator) array(t *flowgraph.ArrayType, onPath map[flowgraph.Type]bool) (Info, error) {
	if t.Len < 0 {
		return Info{}, &flowgraph.LayoutError{Type: t, Reason: fmt.Sprintf("negative length %d", t.Len)}
	}
	elem, err := c.info(t.Elem, onPath)
	if err != nil {
		return Info{}, wrap(t, err)
	}
	stride := AlignTo(elem.Size, elem.Align)
	return Info{
		Size:   stride * int64(t.Len),
		Align:  elem.Align,
		Stride: stride,
	}, nil
}

func (c *Calculator) structure(t *flowgraph.StructType, onPath map[flowgraph.Type]bool) (Info, error) {
	info := Info{Align: 1, FieldOffs: make([]int64, len(t.Fields))}
	var offset int64
	for i, f := range t.Fields {
		fi, err := c.info(f.Type, onPath)
		if err != nil {
			return Info{}, wrap(t, err)
		}
		offset = AlignTo(offset, fi.Align)
		info.FieldOffs[i] = offset
		offset += fi.Size
		if fi.Align > info.Align {
			info.Align = fi.Align
		}
	}
	info.Size = AlignTo(offset, info.Align)
	return info, nil
}

func (c *Calculator) union(t *flowgraph.UnionType, onPath map[flowgraph.Type]bool) (Info, error) {
	if len(t.Cases) == 0 {
		return Info{Align: 1}, nil
	}
	var maxDiscr int64
	seen := make(map[int64]bool)
	for i := range t.Cases {
		d := t.Discr(i)
		switch {
		case d < 0:
			return Info{}, &flowgraph.LayoutError{Type: t, Reason: fmt.Sprintf("negative discriminant %d", d)}
		case seen[d]:
			return Info{}, &flowgraph.LayoutError{Type: t, Reason: fmt.Sprintf("duplicate discriminant %d", d)}
		}
		seen[d] = true
		if d > maxDiscr {
			maxDiscr = d
		}
	}
	info := Info{TagSize: DiscriminantSize(maxDiscr)}
	info.Align = info.TagSize
	payloads := make([]int64, len(t.Cases))
	var maxPayload int64
	for i, cas := range t.Cases {
		if cas.Type == nil {
			continue
		}
		ci, err := c.info(cas.Type, onPath)
		if err != nil {
			return Info{}, wrap(t, err)
		}
		payloads[i] = ci.Size
		if ci.Size > maxPayload {
			maxPayload = ci.Size
		}
		if ci.Align > info.Align {
			info.Align = ci.Align
		}
	}
	info.PayloadOffset = AlignTo(info.TagSize, info.Align)
	info.Size = AlignTo(info.PayloadOffset+maxPayload, info.Align)
	info.VariantSizes = make([]int64, len(t.Cases))
	for i, p := range payloads {
		info.VariantSizes[i] = AlignTo(info.PayloadOffset+p, info.Align)
	}
	return info, nil
}

// wrap reports a layout error of an element type as an error of t.
func wrap(t flowgraph.Type, err error) error {
	return &flowgraph.LayoutError{Type: t, Reason: err.Error()}
}

// DiscriminantSize returns the number of bytes
// needed to store discriminants up to maxDiscr.
func DiscriminantSize(maxDiscr int64) int64 {
	switch {
	case maxDiscr <= 0xFF:
		return 1
	case maxDiscr <= 0xFFFF:
		return 2
	case maxDiscr <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

// AlignTo rounds n up to a multiple of align.
func AlignTo(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
