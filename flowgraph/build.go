package flowgraph

import (
	"fmt"

	"github.com/eaburns/mir/loc"
)

// FuncBuilder builds a FuncDef.
type FuncBuilder struct {
	f      *FuncDef
	blocks []*BlockBuilder
}

// BlockBuilder appends instructions to a BasicBlock.
type BlockBuilder struct {
	fb *FuncBuilder
	b  *BasicBlock
	l  loc.Loc
}

// NewFuncBuilder returns a FuncBuilder for a function.
// A function with typeParms is generic.
func NewFuncBuilder(name string, l loc.Loc, typeParms ...*ParamType) *FuncBuilder {
	return &FuncBuilder{
		f: &FuncDef{Name: name, TypeParms: typeParms, L: l},
	}
}

// Var adds a local variable.
func (fb *FuncBuilder) Var(name string, typ Type) *Local {
	return fb.addLocal(&Local{Name: name, Type: typ, L: fb.f.L})
}

// Temp adds a temporary.
func (fb *FuncBuilder) Temp(typ Type, l loc.Loc) *Local {
	return fb.addLocal(&Local{Type: typ, Temp: true, L: l})
}

func (fb *FuncBuilder) addLocal(l *Local) *Local {
	l.Num = len(fb.f.Locals)
	fb.f.Locals = append(fb.f.Locals, l)
	return l
}

// Block adds a new, empty block.
// Blocks are laid out in the order they are added;
// the first block is the entry.
func (fb *FuncBuilder) Block() *BlockBuilder {
	bb := &BlockBuilder{
		fb: fb,
		b:  &BasicBlock{Num: len(fb.blocks), Func: fb.f},
		l:  fb.f.L,
	}
	fb.blocks = append(fb.blocks, bb)
	fb.f.Blocks = append(fb.f.Blocks, bb.b)
	return bb
}

// Finish returns the built function.
// It panics if any block is not terminated.
func (fb *FuncBuilder) Finish() *FuncDef {
	for _, bb := range fb.blocks {
		if bb.b.Terminal() == nil {
			panic(fmt.Sprintf("%s: block %d is not terminated", fb.f.Name, bb.b.Num))
		}
	}
	relink(fb.f)
	return fb.f
}

// At sets the location of subsequently added instructions.
func (bb *BlockBuilder) At(l loc.Loc) *BlockBuilder {
	bb.l = l
	return bb
}

func (bb *BlockBuilder) add(r Instruction) *BlockBuilder {
	if bb.b.Terminal() != nil {
		panic(fmt.Sprintf("%s: block %d is already terminated", bb.fb.f.Name, bb.b.Num))
	}
	bb.b.Instrs = append(bb.b.Instrs, r)
	return bb
}

func (bb *BlockBuilder) Assign(dst Place, src Rvalue) *BlockBuilder {
	return bb.add(&Assign{Dst: dst, Src: src, L: bb.l})
}

// Move adds dst = move src.
func (bb *BlockBuilder) Move(dst, src *Local) *BlockBuilder {
	return bb.Assign(LocalPlace(dst), &Use{Operand: &Move{Place: LocalPlace(src)}})
}

// Copy adds dst = copy src.
func (bb *BlockBuilder) Copy(dst, src *Local) *BlockBuilder {
	return bb.Assign(LocalPlace(dst), &Use{Operand: &Copy{Place: LocalPlace(src)}})
}

func (bb *BlockBuilder) Live(l *Local) *BlockBuilder {
	return bb.add(&StorageLive{Local: l, L: bb.l})
}

func (bb *BlockBuilder) Dead(l *Local) *BlockBuilder {
	return bb.add(&StorageDead{Local: l, L: bb.l})
}

func (bb *BlockBuilder) SetDiscriminant(p Place, c int) *BlockBuilder {
	return bb.add(&SetDiscriminant{Place: p, Case: c, L: bb.l})
}

func (bb *BlockBuilder) Nop() *BlockBuilder {
	return bb.add(&Nop{L: bb.l})
}

func (bb *BlockBuilder) Goto(dst *BlockBuilder) {
	bb.add(&Goto{Dst: dst.b, L: bb.l})
}

func (bb *BlockBuilder) If(v Operand, x uint64, yes, no *BlockBuilder) {
	bb.add(&If{Value: v, X: x, Yes: yes.b, No: no.b, L: bb.l})
}

func (bb *BlockBuilder) Return() {
	bb.add(&Return{L: bb.l})
}

// relink renumbers the blocks of f in order
// and recomputes their in-edges from their terminals.
func relink(f *FuncDef) {
	for i, b := range f.Blocks {
		b.Num = i
		b.Func = f
		b.in = nil
	}
	for _, b := range f.Blocks {
		for _, o := range b.Out() {
			o.addIn(b)
		}
	}
}
