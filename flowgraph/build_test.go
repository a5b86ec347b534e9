package flowgraph

import (
	"fmt"
	"strings"
	"testing"

	"github.com/eaburns/mir/loc"
	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	tparm := &ParamType{Name: "T"}
	opt := &UnionType{Cases: []*CaseDef{
		{Name: "None", Discr: discr(3)},
		{Name: "Some", Type: tparm},
	}}
	fb := NewFuncBuilder("get", loc.Loc{1, 2}, tparm)
	x := fb.Var("x", opt)
	y := fb.Var("y", tparm)
	d := fb.Temp(Word, loc.Loc{3, 4})
	entry := fb.Block()
	some := fb.Block()
	exit := fb.Block()
	entry.
		Live(d).
		Assign(LocalPlace(d), &Discriminant{Place: LocalPlace(x)}).
		If(&Copy{Place: LocalPlace(d)}, 1, some, exit)
	some.At(loc.Loc{5, 6}).
		Assign(LocalPlace(y), &Use{Operand: &Move{Place: LocalPlace(x).Downcast(1)}}).
		Goto(exit)
	exit.Dead(d).Return()
	f := fb.Finish()

	want := `func get[T] {
    var _0 union{None=3; Some T}
    var _1 T
    temp _2 uint64
0:	in=[], out=[1, 2]
    live(_2)
    _2 = discriminant(_0)
    if copy _2 == 1 then 1 else 2
1:	in=[0], out=[2]
    _1 = move _0.(1)
    goto 2
2:	in=[0, 1], out=[]
    dead(_2)
    return
}`
	if diff := cmp.Diff(want, f.String()); diff != "" {
		t.Errorf("(-want,+got)\n%s", diff)
	}
	if !f.Generic() {
		t.Errorf("Generic()=false, want true")
	}
	if l := f.Blocks[1].Instrs[0].Loc(); l != (loc.Loc{5, 6}) {
		t.Errorf("got location %v, want {5, 6}", l)
	}
	if l := f.Blocks[2].Instrs[0].Loc(); l != (loc.Loc{1, 2}) {
		t.Errorf("got location %v, want {1, 2}", l)
	}
	if errs := Verify(f); len(errs) > 0 {
		t.Errorf("Verify failed: %v", errs)
	}
}

func TestBuildPanics(t *testing.T) {
	tests := []struct {
		name string
		do   func()
		want string
	}{
		{
			name: "unterminated",
			do: func() {
				fb := NewFuncBuilder("f", loc.Loc{})
				fb.Block().Nop()
				fb.Finish()
			},
			want: "block 0 is not terminated",
		},
		{
			name: "after terminal",
			do: func() {
				fb := NewFuncBuilder("f", loc.Loc{})
				b := fb.Block()
				b.Return()
				b.Nop()
			},
			want: "block 0 is already terminated",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil || !strings.Contains(fmt.Sprint(r), test.want) {
					t.Errorf("got panic %v, want %q", r, test.want)
				}
			}()
			test.do()
		})
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{&IntType{Size: 32}, "int32"},
		{Word, "uint64"},
		{&FloatType{Size: 32}, "float32"},
		{&AddrType{Elem: Byte, Mut: true}, "*mut uint8"},
		{&AddrType{Elem: Byte}, "*const uint8"},
		{&ArrayType{Elem: Word, Len: 4}, "[4]uint64"},
		{point, "Point"},
		{&StructType{Fields: []*FieldDef{{Name: "a", Type: Word}, {Name: "b", Type: Byte}}}, "struct{a uint64; b uint8}"},
		{shape, "Shape"},
		{&UnionType{Cases: []*CaseDef{{Name: "A", Discr: discr(5), Type: Word}, {Name: "B"}}}, "union{A=5 uint64; B}"},
		{&ParamType{Name: "T"}, "T"},
	}
	for _, test := range tests {
		if got := test.typ.String(); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}

func TestConstString(t *testing.T) {
	tests := []struct {
		c    Constant
		want string
	}{
		{&IntConst{T: Word, Value: 8}, "uint64(8)"},
		{&IntConst{T: &IntType{Size: 8}, Value: 0xFF}, "int8(-1)"},
		{UintArrayConst(Word, []uint64{8, 800}).Value, "[2]uint64{8, 800}"},
	}
	for _, test := range tests {
		if got := test.c.String(); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}

func TestTypeEq(t *testing.T) {
	tparm := &ParamType{Name: "T"}
	tests := []struct {
		a, b Type
		want bool
	}{
		{Word, &IntType{Size: 64, Unsigned: true}, true},
		{Word, &IntType{Size: 64}, false},
		{&ArrayType{Elem: Word, Len: 2}, &ArrayType{Elem: Word, Len: 2}, true},
		{&ArrayType{Elem: Word, Len: 2}, &ArrayType{Elem: Word, Len: 3}, false},
		{shape, &UnionType{Name: "Shape", Cases: shape.Cases}, true},
		{shape, &UnionType{Name: "Other", Cases: shape.Cases}, false},
		{
			&UnionType{Cases: []*CaseDef{{Name: "A"}, {Name: "B"}}},
			&UnionType{Cases: []*CaseDef{{Name: "A"}, {Name: "B", Discr: discr(2)}}},
			false,
		},
		{tparm, tparm, true},
		{tparm, &ParamType{Name: "T"}, false},
		{&AddrType{Elem: Byte, Mut: true}, &AddrType{Elem: Byte}, false},
	}
	for _, test := range tests {
		if got := TypeEq(test.a, test.b); got != test.want {
			t.Errorf("TypeEq(%s, %s)=%v, want %v", test.a, test.b, got, test.want)
		}
	}
}

func TestPlaceType(t *testing.T) {
	ptr := &AddrType{Elem: shape}
	fb := NewFuncBuilder("f", loc.Loc{})
	p := fb.Var("p", ptr)
	i := fb.Var("i", Word)
	tests := []struct {
		place Place
		str   string
		typ   string
	}{
		{LocalPlace(p), "_0", "*const Shape"},
		{LocalPlace(p).Deref(), "_0.*", "Shape"},
		{LocalPlace(p).Deref().Downcast(0), "_0.*.(0)", "Point"},
		{LocalPlace(p).Deref().Downcast(0).Field(1), "_0.*.(0).1", "int32"},
		{LocalPlace(p).Deref().Downcast(1).Index(i), "_0.*.(1)[_1]", "uint64"},
		{LocalPlace(p).Deref().Downcast(1).ConstIndex(7), "_0.*.(1)[7]", "uint64"},
	}
	for _, test := range tests {
		if got := test.place.String(); got != test.str {
			t.Errorf("got %q, want %q", got, test.str)
		}
		if got := test.place.Type().String(); got != test.typ {
			t.Errorf("%s has type %s, want %s", test.place, got, test.typ)
		}
	}
	if got := LocalPlace(p).Deref().Downcast(1).Index(i).locals(); len(got) != 2 || got[1] != i {
		t.Errorf("locals()=%v, want [_0 _1]", got)
	}
}
