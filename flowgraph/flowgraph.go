// Package flowgraph is a place-based control flow graph IR
// and the optimization passes that run over it.
package flowgraph

import (
	"fmt"
	"strings"

	"github.com/eaburns/mir/loc"
)

type Mod struct {
	Path string
	// Files are the sources that the Locs of the module point into.
	// It may be empty if the module has no source.
	Files loc.Files
	Funcs []*FuncDef
}

type Type interface {
	String() string
	buildString(*strings.Builder) *strings.Builder
	eq(Type) bool
}

// TypeEq returns whether two types are structurally equal.
func TypeEq(a, b Type) bool { return a.eq(b) }

type IntType struct {
	// Size is the size in bits.
	Size     int
	Unsigned bool
}

func (t *IntType) eq(other Type) bool {
	o, ok := other.(*IntType)
	return ok && *o == *t
}

type FloatType struct {
	Size int
}

func (t *FloatType) eq(other Type) bool {
	o, ok := other.(*FloatType)
	return ok && *o == *t
}

type AddrType struct {
	Elem Type
	// Mut is whether the pointee may be written through the address.
	Mut bool
}

func (t *AddrType) eq(other Type) bool {
	o, ok := other.(*AddrType)
	return ok && t.Mut == o.Mut && t.Elem.eq(o.Elem)
}

// ArrayType is a fixed-length array stored inline.
type ArrayType struct {
	Elem Type
	Len  int
}

func (t *ArrayType) eq(other Type) bool {
	o, ok := other.(*ArrayType)
	return ok && t.Len == o.Len && t.Elem.eq(o.Elem)
}

type StructType struct {
	// Name is set for defined types.
	Name   string
	Fields []*FieldDef
}

type FieldDef struct {
	Num  int
	Name string
	Type Type
}

func (t *StructType) eq(other Type) bool {
	o, ok := other.(*StructType)
	if !ok || t.Name != o.Name || len(t.Fields) != len(o.Fields) {
		return false
	}
	if t == o {
		return true
	}
	for i := range t.Fields {
		if t.Fields[i].Name != o.Fields[i].Name ||
			!t.Fields[i].Type.eq(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// UnionType is a tagged sum type.
// A value holds exactly one of its Cases,
// identified at run time by the case's discriminant.
type UnionType struct {
	// Name is set for defined types.
	Name  string
	Cases []*CaseDef
}

type CaseDef struct {
	Name string
	// Type is the payload type; nil is no payload.
	Type Type
	// Discr is an explicit discriminant value.
	// If nil, the discriminant is the case's position in Cases.
	Discr *int64
}

// Discr returns the discriminant of case i.
func (t *UnionType) Discr(i int) int64 {
	if d := t.Cases[i].Discr; d != nil {
		return *d
	}
	return int64(i)
}

func (t *UnionType) eq(other Type) bool {
	o, ok := other.(*UnionType)
	if !ok || t.Name != o.Name || len(t.Cases) != len(o.Cases) {
		return false
	}
	if t == o {
		return true
	}
	for i := range t.Cases {
		if t.Cases[i].Name != o.Cases[i].Name ||
			t.Discr(i) != o.Discr(i) ||
			(t.Cases[i].Type == nil) != (o.Cases[i].Type == nil) ||
			t.Cases[i].Type != nil && !t.Cases[i].Type.eq(o.Cases[i].Type) {
			return false
		}
	}
	return true
}

// ParamType is a type parameter of a generic function.
// It has no layout until substituted.
type ParamType struct {
	Name string
}

func (t *ParamType) eq(other Type) bool { return t == other }

// Word is the default machine word type: a 64-bit unsigned integer.
var Word = &IntType{Size: 64, Unsigned: true}

// Byte is the element type of untyped memory addresses.
var Byte = &IntType{Size: 8, Unsigned: true}

type FuncDef struct {
	Comment string
	Name    string
	// TypeParms is non-empty for generic functions.
	TypeParms []*ParamType
	Locals    []*Local
	Blocks    []*BasicBlock
	L         loc.Loc
}

// Generic returns whether the function has type parameters.
func (f *FuncDef) Generic() bool { return len(f.TypeParms) > 0 }

// Local is a storage slot of a function.
type Local struct {
	// Num is the index of the Local in FuncDef.Locals.
	Num  int
	Name string
	Type Type
	// Temp is whether the local is a temporary.
	// Temporaries start dead; they must be made live
	// with StorageLive before use.
	Temp bool
	L    loc.Loc
}

type BasicBlock struct {
	Num    int
	Func   *FuncDef
	Instrs []Instruction
	in     []*BasicBlock
}

func (b *BasicBlock) addIn(in *BasicBlock) {
	for _, x := range b.in {
		if x == in {
			return
		}
	}
	b.in = append(b.in, in)
}

func (b *BasicBlock) In() []*BasicBlock {
	return append([]*BasicBlock{}, b.in...)
}

func (b *BasicBlock) Out() []*BasicBlock {
	if t := b.Terminal(); t != nil {
		return t.Out()
	}
	return nil
}

// Terminal returns the block's terminating instruction,
// or nil if the block is not terminated.
func (b *BasicBlock) Terminal() Terminal {
	if len(b.Instrs) == 0 {
		return nil
	}
	t, _ := b.Instrs[len(b.Instrs)-1].(Terminal)
	return t
}

// Projection selects a sub-location of a place.
type Projection interface {
	buildString(*strings.Builder) *strings.Builder
}

// Field selects a field of a struct.
type Field struct{ Num int }

// Downcast selects the payload of a union case.
type Downcast struct{ Case int }

// Index selects the array element indexed by the value of a local.
type Index struct{ Local *Local }

// ConstIndex selects the array element at a constant index.
type ConstIndex struct{ Index int }

// Deref selects the value pointed to by an address.
type Deref struct{}

// Place is a storage location: a local and a sequence of projections.
type Place struct {
	Local *Local
	Proj  []Projection
}

// LocalPlace returns the bare place of a local.
func LocalPlace(l *Local) Place { return Place{Local: l} }

// Bare returns whether the place is a whole local with no projections.
func (p Place) Bare() bool { return len(p.Proj) == 0 }

func (p Place) project(x Projection) Place {
	proj := make([]Projection, len(p.Proj), len(p.Proj)+1)
	copy(proj, p.Proj)
	return Place{Local: p.Local, Proj: append(proj, x)}
}

func (p Place) Field(n int) Place      { return p.project(Field{Num: n}) }
func (p Place) Downcast(c int) Place   { return p.project(Downcast{Case: c}) }
func (p Place) Index(l *Local) Place   { return p.project(Index{Local: l}) }
func (p Place) ConstIndex(n int) Place { return p.project(ConstIndex{Index: n}) }
func (p Place) Deref() Place           { return p.project(Deref{}) }
func (p Place) String() string         { return p.buildString(new(strings.Builder)).String() }
func (p Place) locals() []*Local       { return placeLocals(p) }

func placeLocals(p Place) []*Local {
	ls := []*Local{p.Local}
	for _, x := range p.Proj {
		if ix, ok := x.(Index); ok {
			ls = append(ls, ix.Local)
		}
	}
	return ls
}

// Type returns the type of the place.
// It panics if a projection does not apply to its base type.
func (p Place) Type() Type {
	t := p.Local.Type
	for _, x := range p.Proj {
		switch x := x.(type) {
		case Field:
			t = t.(*StructType).Fields[x.Num].Type
		case Downcast:
			c := t.(*UnionType).Cases[x.Case]
			if c.Type == nil {
				t = &StructType{}
			} else {
				t = c.Type
			}
		case Index:
			t = t.(*ArrayType).Elem
		case ConstIndex:
			t = t.(*ArrayType).Elem
		case Deref:
			t = t.(*AddrType).Elem
		default:
			panic(fmt.Sprintf("impossible projection %T", x))
		}
	}
	return t
}

type Operand interface {
	String() string
	buildString(*strings.Builder) *strings.Builder
	Type() Type
	locals() []*Local
}

// Copy reads a place, leaving it intact.
type Copy struct{ Place Place }

// Move reads a place; the place may not be read again until rewritten.
type Move struct{ Place Place }

// Const is a constant operand.
type Const struct{ Value Constant }

func (o *Copy) Type() Type       { return o.Place.Type() }
func (o *Move) Type() Type       { return o.Place.Type() }
func (o *Const) Type() Type      { return o.Value.Type() }
func (o *Copy) locals() []*Local { return o.Place.locals() }
func (o *Move) locals() []*Local { return o.Place.locals() }
func (*Const) locals() []*Local  { return nil }

type Constant interface {
	String() string
	buildString(*strings.Builder) *strings.Builder
	Type() Type
}

// IntConst is an integer constant.
// Value holds the bits of the integer, truncated to T.Size.
type IntConst struct {
	T     *IntType
	Value uint64
}

func (c *IntConst) Type() Type { return c.T }

// ArrayConst is an array constant, one Constant per element.
type ArrayConst struct {
	T     *ArrayType
	Elems []Constant
}

func (c *ArrayConst) Type() Type { return c.T }

// UintConst returns an unsigned IntConst of type t.
func UintConst(t *IntType, v uint64) *Const {
	return &Const{Value: &IntConst{T: t, Value: v}}
}

// UintArrayConst returns an ArrayConst of t-typed integers.
func UintArrayConst(t *IntType, vs []uint64) *Const {
	elems := make([]Constant, len(vs))
	for i, v := range vs {
		elems[i] = &IntConst{T: t, Value: v}
	}
	return &Const{Value: &ArrayConst{
		T:     &ArrayType{Elem: t, Len: len(vs)},
		Elems: elems,
	}}
}

// Rvalue is the right-hand side of an Assign.
type Rvalue interface {
	String() string
	buildString(*strings.Builder) *strings.Builder
	locals() []*Local
}

// Use is the value of an operand.
type Use struct{ Operand Operand }

// Discriminant is the discriminant of the union value at Place.
type Discriminant struct{ Place Place }

// AddressOf is the address of Place.
type AddressOf struct {
	Mut   bool
	Place Place
}

// BinaryOp is an arithmetic operation on two integers of the same type.
type BinaryOp struct {
	Op   OpKind
	X, Y Operand
}

func (r *Use) locals() []*Local          { return r.Operand.locals() }
func (r *Discriminant) locals() []*Local { return r.Place.locals() }
func (r *AddressOf) locals() []*Local    { return r.Place.locals() }
func (r *BinaryOp) locals() []*Local     { return append(r.X.locals(), r.Y.locals()...) }

type OpKind int

const (
	Plus OpKind = iota + 1
	Minus
	Times
)

type Instruction interface {
	String() string
	Loc() loc.Loc
	Comment() string
	setComment(string, ...interface{})
	buildString(*strings.Builder) *strings.Builder
	// locals returns the locals read or written by the instruction.
	locals() []*Local
}

type instruction struct {
	comment string
}

func (r *instruction) Comment() string                        { return r.comment }
func (r *instruction) setComment(f string, vs ...interface{}) { r.comment = fmt.Sprintf(f, vs...) }

// Assign stores the value of Src into Dst.
type Assign struct {
	instruction
	Dst Place
	Src Rvalue
	L   loc.Loc
}

func (r *Assign) Loc() loc.Loc     { return r.L }
func (r *Assign) locals() []*Local { return append(r.Dst.locals(), r.Src.locals()...) }

// StorageLive marks the start of a local's lifetime.
type StorageLive struct {
	instruction
	Local *Local
	L     loc.Loc
}

func (r *StorageLive) Loc() loc.Loc     { return r.L }
func (r *StorageLive) locals() []*Local { return nil }

// StorageDead marks the end of a local's lifetime.
type StorageDead struct {
	instruction
	Local *Local
	L     loc.Loc
}

func (r *StorageDead) Loc() loc.Loc     { return r.L }
func (r *StorageDead) locals() []*Local { return nil }

// SetDiscriminant writes the tag of union case Case into Place.
type SetDiscriminant struct {
	instruction
	Place Place
	Case  int
	L     loc.Loc
}

func (r *SetDiscriminant) Loc() loc.Loc     { return r.L }
func (r *SetDiscriminant) locals() []*Local { return r.Place.locals() }

// CopyNonOverlapping copies Count bytes from address Src to address Dst.
// The two byte ranges must not overlap.
type CopyNonOverlapping struct {
	instruction
	Src   Operand
	Dst   Operand
	Count Operand
	L     loc.Loc
}

func (r *CopyNonOverlapping) Loc() loc.Loc { return r.L }

func (r *CopyNonOverlapping) locals() []*Local {
	return append(append(r.Src.locals(), r.Dst.locals()...), r.Count.locals()...)
}

// Nop does nothing.
// Statements retired by a pass become Nops.
type Nop struct {
	instruction
	L loc.Loc
}

func (r *Nop) Loc() loc.Loc   { return r.L }
func (*Nop) locals() []*Local { return nil }

type Terminal interface {
	Instruction
	Out() []*BasicBlock
}

// Goto jumps to Dst.
type Goto struct {
	instruction
	Dst *BasicBlock
	L   loc.Loc
}

func (r *Goto) Loc() loc.Loc       { return r.L }
func (*Goto) locals() []*Local     { return nil }
func (r *Goto) Out() []*BasicBlock { return []*BasicBlock{r.Dst} }

// If jumps to Yes if the integer Value equals X, otherwise to No.
type If struct {
	instruction
	Value Operand
	X     uint64
	Yes   *BasicBlock
	No    *BasicBlock
	L     loc.Loc
}

func (r *If) Loc() loc.Loc       { return r.L }
func (r *If) locals() []*Local   { return r.Value.locals() }
func (r *If) Out() []*BasicBlock { return []*BasicBlock{r.Yes, r.No} }

type Return struct {
	instruction
	L loc.Loc
}

func (r *Return) Loc() loc.Loc     { return r.L }
func (*Return) locals() []*Local   { return nil }
func (*Return) Out() []*BasicBlock { return nil }
