package flowgraph

import (
	"strings"
	"testing"

	"github.com/eaburns/mir/loc"
)

func TestVerifyOK(t *testing.T) {
	fb := NewFuncBuilder("f", loc.Loc{})
	x := fb.Var("x", Word)
	tmp := fb.Temp(Word, loc.Loc{})
	entry := fb.Block()
	yes := fb.Block()
	no := fb.Block()
	exit := fb.Block()
	entry.Live(tmp).Copy(tmp, x).If(&Copy{Place: LocalPlace(tmp)}, 1, yes, no)
	yes.Copy(x, tmp).Goto(exit)
	no.Goto(exit)
	exit.Dead(tmp).Return()
	if errs := Verify(fb.Finish()); len(errs) > 0 {
		t.Errorf("Verify failed: %v", errs)
	}
}

func TestVerifyErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *FuncDef
		want  string
	}{
		{
			name: "unterminated",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				fb.Block().Return()
				f := fb.Finish()
				f.Blocks[0].Instrs = []Instruction{&Nop{}}
				return f
			},
			want: "block 0 is not terminated",
		},
		{
			name: "terminal not last",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				fb.Block().Return()
				f := fb.Finish()
				f.Blocks[0].Instrs = []Instruction{&Return{}, &Return{}}
				return f
			},
			want: "terminal return is not last",
		},
		{
			name: "misnumbered local",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				fb.Var("x", Word)
				fb.Block().Return()
				f := fb.Finish()
				f.Locals[0].Num = 5
				return f
			},
			want: "local 0 has number 5",
		},
		{
			name: "foreign local",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				x := fb.Var("x", Word)
				stranger := &Local{Num: 1, Type: Word}
				fb.Block().Copy(x, stranger).Return()
				return fb.Finish()
			},
			want: "uses local _1 not in the function",
		},
		{
			name: "stale edges",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				entry := fb.Block()
				exit := fb.Block()
				entry.Goto(exit)
				exit.Return()
				f := fb.Finish()
				f.Blocks[0].Instrs = []Instruction{&Return{}}
				return f
			},
			want: "block 1's in set contains 0, but 0's out set does not contain 1",
		},
		{
			name: "use of dead temporary",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				x := fb.Var("x", Word)
				tmp := fb.Temp(Word, loc.Loc{})
				fb.Block().Copy(x, tmp).Return()
				return fb.Finish()
			},
			want: "uses dead temporary _1",
		},
		{
			name: "live twice",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				tmp := fb.Temp(Word, loc.Loc{})
				fb.Block().Live(tmp).Live(tmp).Return()
				return fb.Finish()
			},
			want: "live(_0) of a live temporary",
		},
		{
			name: "dead twice",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				tmp := fb.Temp(Word, loc.Loc{})
				fb.Block().Live(tmp).Dead(tmp).Dead(tmp).Return()
				return fb.Finish()
			},
			want: "dead(_0) of a dead temporary",
		},
		{
			name: "live on only one path",
			build: func() *FuncDef {
				fb := NewFuncBuilder("f", loc.Loc{})
				x := fb.Var("x", Word)
				tmp := fb.Temp(Word, loc.Loc{})
				entry := fb.Block()
				yes := fb.Block()
				exit := fb.Block()
				entry.If(&Copy{Place: LocalPlace(x)}, 0, yes, exit)
				yes.Live(tmp).Goto(exit)
				exit.Copy(x, tmp).Return()
				return fb.Finish()
			},
			want: "uses dead temporary _1",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			errs := Verify(test.build())
			var found bool
			for _, err := range errs {
				if strings.Contains(err.Error(), test.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("got %v, want an error containing %q", errs, test.want)
			}
		})
	}
}
