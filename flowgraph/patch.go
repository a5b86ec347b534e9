package flowgraph

import (
	"fmt"
	"sort"

	"github.com/eaburns/mir/loc"
)

// Position is the location of an instruction in a function.
type Position struct {
	Block *BasicBlock
	Index int
}

// A Patch buffers edits to a function
// so that they can be planned while iterating over its blocks.
// Nothing is visible in the function until Apply,
// except that replaced instructions are retired to Nops
// at the time they are recorded.
type Patch struct {
	f         *FuncDef
	newLocals []*Local
	edits     map[Position][]Instruction
	applied   bool
}

// NewPatch returns an empty Patch for f.
func NewPatch(f *FuncDef) *Patch {
	return &Patch{f: f, edits: make(map[Position][]Instruction)}
}

// NewTemp returns a new temporary local.
// It is added to the function's locals by Apply
// if a replacement still recorded at Apply uses it.
// Unused temporaries are dropped and the rest renumbered.
func (p *Patch) NewTemp(typ Type, l loc.Loc) *Local {
	t := &Local{
		Num:  len(p.f.Locals) + len(p.newLocals),
		Type: typ,
		Temp: true,
		L:    l,
	}
	p.newLocals = append(p.newLocals, t)
	return t
}

// Replace records that the instruction at pos
// is to be replaced by instrs.
// The instruction is retired to a Nop immediately.
// If a position is replaced more than once, the last replacement wins.
func (p *Patch) Replace(pos Position, instrs ...Instruction) {
	if pos.Block.Func != p.f {
		panic(fmt.Sprintf("%s: block %d is not in the patched function", p.f.Name, pos.Block.Num))
	}
	if pos.Index < 0 || pos.Index >= len(pos.Block.Instrs) {
		panic(fmt.Sprintf("%s: block %d has no instruction %d", p.f.Name, pos.Block.Num, pos.Index))
	}
	old := pos.Block.Instrs[pos.Index]
	if _, ok := old.(Terminal); ok {
		panic(fmt.Sprintf("%s: cannot replace terminal %s", p.f.Name, old))
	}
	if _, ok := old.(*Nop); !ok {
		pos.Block.Instrs[pos.Index] = &Nop{L: old.Loc()}
	}
	p.edits[pos] = instrs
}

// Len returns the number of recorded replacements.
func (p *Patch) Len() int { return len(p.edits) }

// Apply adds the new temporaries to the function
// and splices every replacement into its block.
// Instruction order within a block is preserved;
// only replaced instructions are expanded.
// Apply may only be called once.
func (p *Patch) Apply() {
	if p.applied {
		panic("patch already applied")
	}
	p.applied = true
	p.addTemps()

	byBlock := make(map[*BasicBlock][]int)
	for pos := range p.edits {
		byBlock[pos.Block] = append(byBlock[pos.Block], pos.Index)
	}
	for _, b := range p.f.Blocks {
		indices := byBlock[b]
		if len(indices) == 0 {
			continue
		}
		sort.Ints(indices)
		n := len(b.Instrs)
		for _, i := range indices {
			n += len(p.edits[Position{Block: b, Index: i}]) - 1
		}
		instrs := make([]Instruction, 0, n)
		var next int
		for _, i := range indices {
			instrs = append(instrs, b.Instrs[next:i]...)
			instrs = append(instrs, p.edits[Position{Block: b, Index: i}]...)
			next = i + 1
		}
		b.Instrs = append(instrs, b.Instrs[next:]...)
	}
}

// addTemps appends the new temporaries used by the recorded edits
// to the function's locals, numbered in order of creation.
func (p *Patch) addTemps() {
	used := make(map[*Local]bool)
	for _, instrs := range p.edits {
		for _, r := range instrs {
			for _, l := range append(r.locals(), markedLocal(r)...) {
				used[l] = true
			}
		}
	}
	for _, t := range p.newLocals {
		if used[t] {
			t.Num = len(p.f.Locals)
			p.f.Locals = append(p.f.Locals, t)
		}
	}
}
