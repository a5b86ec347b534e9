package flowgraph_test

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/eaburns/mir/flowgraph"
	"github.com/eaburns/mir/flowgraph/interp"
	"github.com/eaburns/mir/layout"
	"github.com/eaburns/mir/loc"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

var update = flag.Bool("update", false, "rewrite the golden files in testdata")

var (
	u8  = &flowgraph.IntType{Size: 8, Unsigned: true}
	u16 = &flowgraph.IntType{Size: 16, Unsigned: true}
	u32 = &flowgraph.IntType{Size: 32, Unsigned: true}
	i32 = &flowgraph.IntType{Size: 32}

	point = &flowgraph.StructType{
		Name: "Point",
		Fields: []*flowgraph.FieldDef{
			{Num: 0, Name: "x", Type: i32},
			{Num: 1, Name: "y", Type: i32},
		},
	}
	// shape has variant sizes 16 and 800.
	shape = &flowgraph.UnionType{
		Name: "Shape",
		Cases: []*flowgraph.CaseDef{
			{Name: "Point", Type: point},
			{Name: "Polygon", Type: &flowgraph.ArrayType{Elem: flowgraph.Word, Len: 99}},
		},
	}
	// tagged has discriminants 10, 12, and 11
	// and variant sizes 2, 41, and 201.
	tagged = &flowgraph.UnionType{
		Name: "Tagged",
		Cases: []*flowgraph.CaseDef{
			{Name: "A", Type: u8, Discr: discr(10)},
			{Name: "B", Type: &flowgraph.ArrayType{Elem: u8, Len: 40}, Discr: discr(12)},
			{Name: "C", Type: &flowgraph.ArrayType{Elem: u8, Len: 200}, Discr: discr(11)},
		},
	}
)

func discr(d int64) *int64 { return &d }

// copyFunc returns a function that copies or moves _1 into _0.
func copyFunc(name string, t flowgraph.Type, move bool, typeParms ...*flowgraph.ParamType) *flowgraph.FuncDef {
	fb := flowgraph.NewFuncBuilder(name, loc.Loc{}, typeParms...)
	dst := fb.Var("dst", t)
	src := fb.Var("src", t)
	if move {
		fb.Block().Move(dst, src).Return()
	} else {
		fb.Block().Copy(dst, src).Return()
	}
	return fb.Finish()
}

type goldenCase struct {
	name string
	f    *flowgraph.FuncDef
	opt  *flowgraph.UnionSizeOpt
}

func goldenCases(lc *layout.Calculator) []goldenCase {
	tparm := &flowgraph.ParamType{Name: "T"}
	option := &flowgraph.UnionType{Cases: []*flowgraph.CaseDef{
		{Name: "None"},
		{Name: "Some", Type: tparm},
	}}
	return []goldenCase{
		{
			name: "shape_move",
			f:    copyFunc("shape_move", shape, true),
			opt:  flowgraph.NewUnionSizeOpt(lc, 100),
		},
		{
			name: "shape_word32",
			f:    copyFunc("shape_word32", shape, false),
			opt:  flowgraph.NewUnionSizeOpt(lc, 100, flowgraph.WithWord(u32)),
		},
		{
			name: "tagged",
			f:    copyFunc("tagged", tagged, false),
			opt:  flowgraph.NewUnionSizeOpt(lc, 0),
		},
		{
			name: "below_threshold",
			f:    copyFunc("below_threshold", shape, false),
			opt:  flowgraph.NewUnionSizeOpt(lc, 900),
		},
		{
			name: "generic",
			f:    copyFunc("generic", option, true, tparm),
			opt:  flowgraph.NewUnionSizeOpt(lc, 0),
		},
	}
}

func TestGolden(t *testing.T) {
	path := filepath.Join("testdata", "unionsize.txtar")
	ar, err := txtar.ParseFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %s", path, err)
	}
	want := make(map[string]string)
	for _, f := range ar.Files {
		want[f.Name] = string(f.Data)
	}

	var files []txtar.File
	for _, c := range goldenCases(layout.NewCalculator()) {
		if errs := c.opt.Run(c.f); len(errs) > 0 {
			t.Errorf("%s: Run failed: %v", c.name, errs)
			continue
		}
		got := c.f.String() + "\n"
		files = append(files, txtar.File{Name: c.name, Data: []byte(got)})
		if *update {
			continue
		}
		w, ok := want[c.name]
		if !ok {
			t.Errorf("%s: no golden output in %s", c.name, path)
			continue
		}
		if diff := cmp.Diff(w, got); diff != "" {
			t.Errorf("%s: (-want,+got)\n%s", c.name, diff)
		}
	}
	if *update {
		ar.Files = files
		if err := os.WriteFile(path, txtar.Format(ar), 0644); err != nil {
			t.Fatalf("failed to write %s: %s", path, err)
		}
	}
}

// TestSizedCopyMatchesFullCopy checks, for every variant,
// that the rewritten copy reproduces the active variant's bytes
// exactly as a whole-value copy does, and writes nothing past them.
// Unions too big for the word are left as whole-value copies.
func TestSizedCopyMatchesFullCopy(t *testing.T) {
	lc := layout.NewCalculator()
	for _, u := range []*flowgraph.UnionType{shape, tagged} {
		for _, word := range []*flowgraph.IntType{flowgraph.Word, u32, u16, u8} {
			for i := range u.Cases {
				name := fmt.Sprintf("%s/%s/%s", u, word, u.Cases[i].Name)
				t.Run(name, func(t *testing.T) {
					info, err := lc.Info(u)
					if err != nil {
						t.Fatalf("Info(%s) failed: %s", u, err)
					}
					src := make([]byte, info.Size)
					for j := range src {
						src[j] = byte(7*j + 1)
					}
					d := uint64(u.Discr(i))
					for j := int64(0); j < info.TagSize; j++ {
						src[j] = byte(d >> (8 * j))
					}
					dst := bytes.Repeat([]byte{0xEE}, int(info.Size))

					full := copyFunc("full", u, false)
					fullFrame := interp.New(lc).Eval(full, dst, src)
					if diff := cmp.Diff(src, fullFrame.Bytes(full.Locals[0])); diff != "" {
						t.Fatalf("full copy: (-want,+got)\n%s", diff)
					}

					sized := copyFunc("sized", u, false)
					if errs := flowgraph.NewUnionSizeOpt(lc, 0, flowgraph.WithWord(word)).Run(sized); len(errs) > 0 {
						t.Fatalf("Run failed: %v", errs)
					}
					if errs := flowgraph.Verify(sized); len(errs) > 0 {
						t.Fatalf("Verify failed: %v", errs)
					}
					rewritten := len(sized.Locals) > 2
					if fits := word.Size >= 64 || info.Size < int64(1)<<word.Size; rewritten != fits {
						t.Fatalf("rewritten=%v, want %v:\n%s", rewritten, fits, sized)
					}
					fr := interp.New(lc).Eval(sized, dst, src)
					got := fr.Bytes(sized.Locals[0])
					n := info.Size
					if rewritten {
						n = info.VariantSizes[i]
					}
					if diff := cmp.Diff(fullFrame.Bytes(full.Locals[0])[:n], got[:n]); diff != "" {
						t.Errorf("active variant: (-full,+sized)\n%s", diff)
					}
					if diff := cmp.Diff(dst[n:], got[n:]); diff != "" {
						t.Errorf("past the active variant: (-want,+got)\n%s", diff)
					}
					if diff := cmp.Diff(src, fr.Bytes(sized.Locals[1])); diff != "" {
						t.Errorf("source changed: (-want,+got)\n%s", diff)
					}
					for _, l := range sized.Locals {
						if l.Temp && fr.Live(l) {
							t.Errorf("temporary %s is live after the copy", l)
						}
					}
				})
			}
		}
	}
}

func TestOptimizeModule(t *testing.T) {
	lc := layout.NewCalculator()
	m := &flowgraph.Mod{Path: "shapes"}
	for i := 0; i < 4; i++ {
		m.Funcs = append(m.Funcs, copyFunc(fmt.Sprintf("f%d", i), shape, i%2 == 0))
	}
	tparm := &flowgraph.ParamType{Name: "T"}
	m.Funcs = append(m.Funcs, copyFunc("g", &flowgraph.ArrayType{Elem: tparm, Len: 2}, false, tparm))

	passes := []flowgraph.Pass{
		flowgraph.RemoveUnreachable,
		flowgraph.MergeBlocks,
		flowgraph.NewUnionSizeOpt(lc, 64),
		flowgraph.RemoveNops,
	}
	if errs := flowgraph.Optimize(m, passes...); len(errs) > 0 {
		t.Fatalf("Optimize failed: %v", errs)
	}
	for _, f := range m.Funcs[:4] {
		if _, ok := f.Blocks[0].Instrs[len(f.Blocks[0].Instrs)-7].(*flowgraph.CopyNonOverlapping); !ok {
			t.Errorf("%s was not rewritten:\n%s", f.Name, f)
		}
		if errs := flowgraph.Verify(f); len(errs) > 0 {
			t.Errorf("Verify(%s) failed: %v", f.Name, errs)
		}
	}
	if n := len(m.Funcs[4].Blocks[0].Instrs); n != 2 {
		t.Errorf("g has %d instructions, want 2:\n%s", n, m.Funcs[4])
	}
}
