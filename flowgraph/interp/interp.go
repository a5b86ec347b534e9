// Package interp is a byte-level interpreter for flowgraph functions.
//
// Each local is a separate allocation in a flat memory,
// laid out by a layout.Calculator.
// Accesses outside of a live allocation,
// overlapping CopyNonOverlapping ranges,
// and out-of-bounds indexing panic.
package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/eaburns/mir/flowgraph"
	"github.com/eaburns/mir/layout"
)

type Interp struct {
	// Out receives the trace.
	Out   io.Writer
	Trace bool
	// MaxSteps, if positive, bounds the number of instructions evaluated.
	MaxSteps int

	layout *layout.Calculator
}

func New(lc *layout.Calculator) *Interp {
	return &Interp{Out: os.Stdout, layout: lc}
}

// Frame is the state of an evaluated function.
type Frame struct {
	Func *flowgraph.FuncDef
	// Steps is the number of instructions evaluated.
	Steps int

	interp *Interp
	mem    *memory
	allocs []*alloc
}

// Eval evaluates f and returns its final frame.
// args initialize the non-temporary locals of f, in order;
// each must be exactly the size of its local.
// Remaining non-temporary locals are zero.
func (interp *Interp) Eval(f *flowgraph.FuncDef, args ...[]byte) *Frame {
	if len(f.Blocks) == 0 {
		panic(fmt.Sprintf("%s: function body is undefined", f.Name))
	}
	fr := &Frame{
		Func:   f,
		interp: interp,
		mem:    newMemory(),
		allocs: make([]*alloc, len(f.Locals)),
	}
	for i, l := range f.Locals {
		info := interp.info(l.Type)
		fr.allocs[i] = fr.mem.allocate(fmt.Sprintf("_%d", l.Num), info.Size, info.Align, !l.Temp)
		if l.Temp {
			continue
		}
		if len(args) > 0 {
			if int64(len(args[0])) != info.Size {
				panic(fmt.Sprintf("%s: argument for _%d has %d bytes, expected %d",
					f.Name, l.Num, len(args[0]), info.Size))
			}
			fr.mem.write(fr.allocs[i].addr, args[0])
			args = args[1:]
		}
	}
	if len(args) > 0 {
		panic(fmt.Sprintf("%s: %d extra arguments", f.Name, len(args)))
	}

	b, n := f.Blocks[0], 0
	for b != nil {
		if interp.MaxSteps > 0 && fr.Steps >= interp.MaxSteps {
			panic(fmt.Sprintf("%s: exceeded %d steps", f.Name, interp.MaxSteps))
		}
		r := b.Instrs[n]
		if interp.Trace {
			fmt.Fprintf(interp.Out, "--- step %03d ---\nblock %d, instr %d: %s\n", fr.Steps, b.Num, n, r)
		}
		fr.Steps++
		n++
		if next, ok := fr.step(r); ok {
			b, n = next, 0
		}
	}
	return fr
}

// Bytes returns a copy of the bytes of a live local.
func (fr *Frame) Bytes(l *flowgraph.Local) []byte {
	a := fr.allocs[l.Num]
	return fr.mem.read(a.addr, a.size)
}

// Live returns whether a local's storage is live.
func (fr *Frame) Live(l *flowgraph.Local) bool { return fr.allocs[l.Num].live }

func (interp *Interp) info(t flowgraph.Type) layout.Info {
	info, err := interp.layout.Info(t)
	if err != nil {
		panic(err.Error())
	}
	return info
}

// step evaluates r.
// If r is a terminal, step returns the next block (nil on return) and true.
func (fr *Frame) step(r flowgraph.Instruction) (*flowgraph.BasicBlock, bool) {
	switch r := r.(type) {
	case *flowgraph.Assign:
		dst := fr.addr(r.Dst)
		size := fr.interp.info(r.Dst.Type()).Size
		v := fr.rvalue(r.Src, size)
		if int64(len(v)) != size {
			panic(fmt.Sprintf("%s: assigning %d bytes to a %d-byte place", r, len(v), size))
		}
		fr.mem.write(dst, v)
	case *flowgraph.StorageLive:
		a := fr.allocs[r.Local.Num]
		if a.live {
			panic(fmt.Sprintf("%s: local is already live", r))
		}
		a.live = true
		fr.mem.fill(a, poison)
	case *flowgraph.StorageDead:
		a := fr.allocs[r.Local.Num]
		if !a.live {
			panic(fmt.Sprintf("%s: local is already dead", r))
		}
		a.live = false
	case *flowgraph.SetDiscriminant:
		u, ok := r.Place.Type().(*flowgraph.UnionType)
		if !ok {
			panic(fmt.Sprintf("%s: not a union", r))
		}
		info := fr.interp.info(u)
		tag := putUint(make([]byte, info.TagSize), uint64(u.Discr(r.Case)))
		fr.mem.write(fr.addr(r.Place), tag)
	case *flowgraph.CopyNonOverlapping:
		src := getUint(fr.operand(r.Src))
		dst := getUint(fr.operand(r.Dst))
		n := int64(getUint(fr.operand(r.Count)))
		s, d := int64(src), int64(dst)
		if s < d+n && d < s+n {
			panic(fmt.Sprintf("%s: [%d, %d) overlaps [%d, %d)", r, s, s+n, d, d+n))
		}
		fr.mem.write(d, fr.mem.read(s, n))
	case *flowgraph.Nop:
	case *flowgraph.Goto:
		return r.Dst, true
	case *flowgraph.If:
		v := fr.operand(r.Value)
		if getUint(v) == truncate(r.X, int64(len(v))) {
			return r.Yes, true
		}
		return r.No, true
	case *flowgraph.Return:
		return nil, true
	default:
		panic(fmt.Sprintf("impossible instruction %T", r))
	}
	return nil, false
}

// rvalue returns the value of rv.
// Discriminants are zero-extended to size bytes.
func (fr *Frame) rvalue(rv flowgraph.Rvalue, size int64) []byte {
	switch rv := rv.(type) {
	case *flowgraph.Use:
		return fr.operand(rv.Operand)
	case *flowgraph.Discriminant:
		u, ok := rv.Place.Type().(*flowgraph.UnionType)
		if !ok {
			panic(fmt.Sprintf("%s: not a union", rv))
		}
		info := fr.interp.info(u)
		d := getUint(fr.mem.read(fr.addr(rv.Place), info.TagSize))
		if truncate(d, size) != d {
			panic(fmt.Sprintf("%s: discriminant %d does not fit in %d bytes", rv, d, size))
		}
		return putUint(make([]byte, size), d)
	case *flowgraph.AddressOf:
		return putUint(make([]byte, fr.interp.layout.PointerSize), uint64(fr.addr(rv.Place)))
	case *flowgraph.BinaryOp:
		x, y := fr.operand(rv.X), fr.operand(rv.Y)
		if len(x) != len(y) {
			panic(fmt.Sprintf("%s: operand sizes differ: %d and %d", rv, len(x), len(y)))
		}
		a, b := getUint(x), getUint(y)
		var v uint64
		switch rv.Op {
		case flowgraph.Plus:
			v = a + b
		case flowgraph.Minus:
			v = a - b
		case flowgraph.Times:
			v = a * b
		default:
			panic(fmt.Sprintf("impossible op %d", rv.Op))
		}
		return putUint(make([]byte, len(x)), truncate(v, int64(len(x))))
	default:
		panic(fmt.Sprintf("impossible rvalue %T", rv))
	}
}

func (fr *Frame) operand(op flowgraph.Operand) []byte {
	switch op := op.(type) {
	case *flowgraph.Copy:
		return fr.mem.read(fr.addr(op.Place), fr.interp.info(op.Place.Type()).Size)
	case *flowgraph.Move:
		return fr.mem.read(fr.addr(op.Place), fr.interp.info(op.Place.Type()).Size)
	case *flowgraph.Const:
		return fr.constant(op.Value)
	default:
		panic(fmt.Sprintf("impossible operand %T", op))
	}
}

func (fr *Frame) constant(c flowgraph.Constant) []byte {
	switch c := c.(type) {
	case *flowgraph.IntConst:
		n := int64(c.T.Size / 8)
		return putUint(make([]byte, n), truncate(c.Value, n))
	case *flowgraph.ArrayConst:
		info := fr.interp.info(c.T)
		if len(c.Elems) != c.T.Len {
			panic(fmt.Sprintf("%s: %d elements, expected %d", c, len(c.Elems), c.T.Len))
		}
		b := make([]byte, info.Size)
		for i, e := range c.Elems {
			copy(b[int64(i)*info.Stride:], fr.constant(e))
		}
		return b
	default:
		panic(fmt.Sprintf("impossible constant %T", c))
	}
}

// addr returns the address of a place.
func (fr *Frame) addr(p flowgraph.Place) int64 {
	a := fr.allocs[p.Local.Num]
	if !a.live {
		panic(fmt.Sprintf("%s: local _%d is dead", p, p.Local.Num))
	}
	addr := a.addr
	t := p.Local.Type
	for _, x := range p.Proj {
		info := fr.interp.info(t)
		switch x := x.(type) {
		case flowgraph.Field:
			addr += info.FieldOffs[x.Num]
			t = t.(*flowgraph.StructType).Fields[x.Num].Type
		case flowgraph.Downcast:
			addr += info.PayloadOffset
			c := t.(*flowgraph.UnionType).Cases[x.Case]
			if c.Type == nil {
				t = &flowgraph.StructType{}
			} else {
				t = c.Type
			}
		case flowgraph.Index:
			at := t.(*flowgraph.ArrayType)
			i := getUint(fr.operand(&flowgraph.Copy{Place: flowgraph.LocalPlace(x.Local)}))
			if i >= uint64(at.Len) {
				panic(fmt.Sprintf("%s: index %d out of bounds [0, %d)", p, i, at.Len))
			}
			addr += int64(i) * info.Stride
			t = at.Elem
		case flowgraph.ConstIndex:
			at := t.(*flowgraph.ArrayType)
			if x.Index < 0 || x.Index >= at.Len {
				panic(fmt.Sprintf("%s: index %d out of bounds [0, %d)", p, x.Index, at.Len))
			}
			addr += int64(x.Index) * info.Stride
			t = at.Elem
		case flowgraph.Deref:
			ptr := getUint(fr.mem.read(addr, info.Size))
			if ptr == 0 {
				panic(fmt.Sprintf("%s: nil dereference", p))
			}
			addr = int64(ptr)
			t = t.(*flowgraph.AddrType).Elem
		default:
			panic(fmt.Sprintf("impossible projection %T", x))
		}
	}
	return addr
}
