package flowgraph

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// UnionSizeOpt rewrites whole-value copies and moves of union values
// to copy only the bytes of the value's active case.
//
// A copy of a union copies the size of its largest case.
// If the case sizes differ by at least Threshold bytes,
// UnionSizeOpt replaces the copy with a lookup of the active case's size
// in a constant table indexed by the discriminant,
// followed by a CopyNonOverlapping of that many bytes.
//
// A UnionSizeOpt holds no per-function state;
// it may be used concurrently on different functions.
type UnionSizeOpt struct {
	oracle    LayoutOracle
	threshold int64
	word      *IntType
}

// An Option configures a UnionSizeOpt.
type Option func(*UnionSizeOpt)

// WithWord sets the unsigned integer type
// used for sizes and discriminants in the emitted code.
// The default is Word.
// Unions whose total size or discriminants do not fit in the word
// are not rewritten.
func WithWord(t *IntType) Option {
	if !t.Unsigned {
		panic(fmt.Sprintf("word type %s is signed", t))
	}
	return func(o *UnionSizeOpt) { o.word = t }
}

// NewUnionSizeOpt returns a UnionSizeOpt that rewrites copies of unions
// whose largest and smallest cases differ by at least threshold bytes.
func NewUnionSizeOpt(oracle LayoutOracle, threshold int64, opts ...Option) *UnionSizeOpt {
	if threshold < 0 {
		panic(fmt.Sprintf("negative threshold %d", threshold))
	}
	o := &UnionSizeOpt{oracle: oracle, threshold: threshold, word: Word}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *UnionSizeOpt) Name() string { return fmt.Sprintf("union-size(%d)", o.threshold) }

// Threshold returns the minimum case size spread that is rewritten.
func (o *UnionSizeOpt) Threshold() int64 { return o.threshold }

// Run rewrites f.
// The returned errors are internal inconsistencies;
// the statements they concern are left unchanged.
func (o *UnionSizeOpt) Run(f *FuncDef) []error {
	var errs []error
	cache := newSizeTableCache(o)
	patch := NewPatch(f)
	for _, b := range f.Blocks {
		for i, r := range b.Instrs {
			dst, src, ok := wholeValueCopy(r)
			if !ok {
				continue
			}
			st, err := cache.get(src.Type)
			if err != nil {
				var layoutErr *LayoutError
				if f.Generic() && errors.As(err, &layoutErr) {
					Logger().Debug("skipping copy with unresolved layout",
						zap.String("func", f.Name),
						zap.Stringer("type", src.Type),
						zap.Error(err))
					continue
				}
				Logger().Warn("skipping copy",
					zap.String("func", f.Name),
					zap.Int("block", b.Num),
					zap.Int("index", i),
					zap.Error(err))
				errs = append(errs, &InternalError{Func: f.Name, L: r.Loc(), Err: err})
				continue
			}
			if st == nil {
				continue
			}
			patch.Replace(Position{Block: b, Index: i}, o.sizedCopy(patch, st, dst, src, r)...)
			Logger().Debug("sized union copy",
				zap.String("func", f.Name),
				zap.Int("block", b.Num),
				zap.Int("index", i),
				zap.Stringer("type", src.Type),
				zap.Int64("total", st.layout.TotalSize),
				zap.Uint64s("sizes", st.sizes))
		}
	}
	patch.Apply()
	return errs
}

// wholeValueCopy returns the locals of dst = copy src or dst = move src,
// where dst and src are distinct bare locals of the same type.
func wholeValueCopy(r Instruction) (dst, src *Local, ok bool) {
	a, ok := r.(*Assign)
	if !ok || !a.Dst.Bare() {
		return nil, nil, false
	}
	use, ok := a.Src.(*Use)
	if !ok {
		return nil, nil, false
	}
	var p Place
	switch op := use.Operand.(type) {
	case *Copy:
		p = op.Place
	case *Move:
		p = op.Place
	default:
		return nil, nil, false
	}
	if !p.Bare() || p.Local == a.Dst.Local || !TypeEq(p.Local.Type, a.Dst.Local.Type) {
		return nil, nil, false
	}
	return a.Dst.Local, p.Local, true
}

// sizedCopy returns the instructions copying the active case of src to dst,
// replacing the copy instruction orig.
func (o *UnionSizeOpt) sizedCopy(p *Patch, st *sizeTable, dst, src *Local, orig Instruction) []Instruction {
	l := orig.Loc()
	var instrs []Instruction
	var live []*Local
	temp := func(typ Type, rv Rvalue) *Local {
		t := p.NewTemp(typ, l)
		live = append(live, t)
		instrs = append(instrs,
			&StorageLive{Local: t, L: l},
			&Assign{Dst: LocalPlace(t), Src: rv, L: l})
		return t
	}
	table := temp(&ArrayType{Elem: o.word, Len: len(st.sizes)},
		&Use{Operand: UintArrayConst(o.word, st.sizes)})
	index := temp(o.word, &Discriminant{Place: LocalPlace(src)})
	if st.base != 0 {
		index = temp(o.word, &BinaryOp{
			Op: Minus,
			X:  &Copy{Place: LocalPlace(index)},
			Y:  UintConst(o.word, uint64(st.base)),
		})
	}
	size := temp(o.word, &Use{Operand: &Copy{Place: LocalPlace(table).Index(index)}})
	dstAddr := temp(&AddrType{Elem: Byte, Mut: true}, &AddressOf{Mut: true, Place: LocalPlace(dst)})
	srcAddr := temp(&AddrType{Elem: Byte}, &AddressOf{Place: LocalPlace(src)})
	instrs = append(instrs, &CopyNonOverlapping{
		Src:   &Copy{Place: LocalPlace(srcAddr)},
		Dst:   &Copy{Place: LocalPlace(dstAddr)},
		Count: &Copy{Place: LocalPlace(size)},
		L:     l,
	})
	for i := len(live) - 1; i >= 0; i-- {
		instrs = append(instrs, &StorageDead{Local: live[i], L: l})
	}
	instrs[0].setComment("sized copy: %s", orig)
	return instrs
}

// sizeTable is the case size table of a union type.
type sizeTable struct {
	layout *VariantLayout
	// sizes[d-base] is the size of the case with discriminant d.
	// Entries for unused discriminants are the total size.
	sizes []uint64
	base  int64
}

// maxTableSpread bounds the table length of a union
// with non-positional discriminants, as a multiple of its case count.
const maxTableSpread = 4

// candidate returns the size table of a type
// whose copies should be rewritten, or nil.
// The error is non-nil if the layout could not be determined
// or is inconsistent with the type.
func (o *UnionSizeOpt) candidate(t Type) (*sizeTable, error) {
	u, ok := t.(*UnionType)
	if !ok || len(u.Cases) < 2 {
		return nil, nil
	}
	vl, err := o.oracle.Layout(t)
	if err != nil {
		return nil, err
	}
	if len(vl.VariantSizes) != len(u.Cases) {
		return nil, fmt.Errorf("%s: layout has %d variants, type has %d cases",
			t, len(vl.VariantSizes), len(u.Cases))
	}
	smallest, largest := vl.VariantSizes[0], vl.VariantSizes[0]
	for i, sz := range vl.VariantSizes {
		// The copy must never read or write past the value.
		if sz < 0 || sz > vl.TotalSize {
			return nil, fmt.Errorf("%s: case %s has size %d, total size is %d",
				t, u.Cases[i].Name, sz, vl.TotalSize)
		}
		if sz < smallest {
			smallest = sz
		}
		if sz > largest {
			largest = sz
		}
	}
	if largest-smallest < o.threshold {
		return nil, nil
	}
	st, err := newSizeTable(u, vl)
	if st == nil || err != nil {
		return nil, err
	}
	hi := st.base + int64(len(st.sizes)) - 1
	for _, v := range []int64{vl.TotalSize, hi, int64(len(st.sizes) - 1)} {
		if !o.fitsWord(v) {
			Logger().Debug("size table does not fit in the word type",
				zap.Stringer("type", u),
				zap.Stringer("word", o.word),
				zap.Int64("value", v))
			return nil, nil
		}
	}
	return st, nil
}

// fitsWord returns whether v is representable in the word type.
func (o *UnionSizeOpt) fitsWord(v int64) bool {
	return v >= 0 && (o.word.Size >= 64 || v < int64(1)<<o.word.Size)
}

func newSizeTable(u *UnionType, vl *VariantLayout) (*sizeTable, error) {
	positional := true
	lo, hi := u.Discr(0), u.Discr(0)
	for i := range u.Cases {
		d := u.Discr(i)
		if d != int64(i) {
			positional = false
		}
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	if positional {
		sizes := make([]uint64, len(vl.VariantSizes))
		for i, sz := range vl.VariantSizes {
			sizes[i] = uint64(sz)
		}
		return &sizeTable{layout: vl, sizes: sizes}, nil
	}
	n := len(u.Cases)
	if hi-lo >= int64(maxTableSpread*n) || hi-lo < 0 {
		Logger().Debug("discriminants too sparse for a size table",
			zap.Stringer("type", u),
			zap.Int64("min", lo),
			zap.Int64("max", hi))
		return nil, nil
	}
	sizes := make([]uint64, hi-lo+1)
	set := make([]bool, len(sizes))
	for i := range sizes {
		sizes[i] = uint64(vl.TotalSize)
	}
	for i, sz := range vl.VariantSizes {
		j := u.Discr(i) - lo
		if set[j] {
			return nil, fmt.Errorf("%s: duplicate discriminant %d", u, u.Discr(i))
		}
		set[j] = true
		sizes[j] = uint64(sz)
	}
	return &sizeTable{layout: vl, sizes: sizes, base: lo}, nil
}

// sizeTableCache memoizes candidate for the duration of one Run.
type sizeTableCache struct {
	opt     *UnionSizeOpt
	entries map[Type]*sizeTable
}

func newSizeTableCache(o *UnionSizeOpt) *sizeTableCache {
	return &sizeTableCache{opt: o, entries: make(map[Type]*sizeTable)}
}

// get returns the size table of t, computing it on the first request.
// Types that are not candidates are cached as nil.
// An error is returned only by the request that computed the entry.
func (c *sizeTableCache) get(t Type) (*sizeTable, error) {
	if st, ok := c.entries[t]; ok {
		return st, nil
	}
	st, err := c.opt.candidate(t)
	c.entries[t] = st
	return st, err
}
