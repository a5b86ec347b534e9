package flowgraph

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// A Pass transforms a function in place.
type Pass interface {
	Name() string
	// Run transforms f.
	// Returned errors are diagnostics;
	// f is valid whether or not there are errors.
	Run(f *FuncDef) []error
}

type passFunc struct {
	name string
	run  func(*FuncDef)
}

func (p passFunc) Name() string { return p.name }

func (p passFunc) Run(f *FuncDef) []error {
	p.run(f)
	return nil
}

var (
	// RemoveUnreachable removes blocks unreachable from the entry block.
	RemoveUnreachable Pass = passFunc{name: "remove-unreachable", run: rmUnreach}
	// MergeBlocks merges each block into its predecessor
	// if it is the predecessor's only successor
	// and the predecessor is its only predecessor.
	MergeBlocks Pass = passFunc{name: "merge-blocks", run: mergeBlocks}
	// RemoveNops removes Nop instructions.
	RemoveNops Pass = passFunc{name: "remove-nops", run: rmNops}
)

// Optimize runs passes, in order, over each function of m.
// Different functions are optimized concurrently.
// The returned errors are the diagnostics of all passes
// in the order of m.Funcs.
func Optimize(m *Mod, passes ...Pass) []error {
	errs := make([][]error, len(m.Funcs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range m.Funcs {
		g.Go(func() error {
			for _, p := range passes {
				Logger().Debug("running pass",
					zap.String("pass", p.Name()),
					zap.String("func", f.Name))
				errs[i] = append(errs[i], p.Run(f)...)
			}
			return nil
		})
	}
	g.Wait()
	var all []error
	for _, es := range errs {
		for _, err := range es {
			if ie, ok := err.(*InternalError); ok && len(m.Files) > 0 {
				Logger().Debug("pass error",
					zap.Stringer("at", m.Files.Location(ie.L)),
					zap.Error(err))
			}
		}
		all = append(all, es...)
	}
	return all
}

func rmUnreach(f *FuncDef) {
	if len(f.Blocks) == 0 {
		return
	}
	seen := make(map[*BasicBlock]bool)
	seen[f.Blocks[0]] = true
	todo := []*BasicBlock{f.Blocks[0]}
	for len(todo) > 0 {
		b := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		for _, o := range b.Out() {
			if !seen[o] {
				seen[o] = true
				todo = append(todo, o)
			}
		}
	}
	var i int
	for _, b := range f.Blocks {
		if seen[b] {
			f.Blocks[i] = b
			i++
		}
	}
	f.Blocks = f.Blocks[:i]
	relink(f)
}

func mergeBlocks(f *FuncDef) {
	into := make(map[*BasicBlock]*BasicBlock)
	var done []*BasicBlock
	for i, b := range f.Blocks {
		in := b.In()
		if i == 0 || len(in) != 1 {
			done = append(done, b)
			continue
		}
		pred := in[0]
		for into[pred] != nil {
			pred = into[pred]
		}
		if _, ok := pred.Terminal().(*Goto); !ok || pred == b {
			done = append(done, b)
			continue
		}
		// The predecessor's only way out is a Goto to b;
		// replace it with b's instructions.
		pred.Instrs = append(pred.Instrs[:len(pred.Instrs)-1], b.Instrs...)
		into[b] = pred
	}
	f.Blocks = done
	relink(f)
}

func rmNops(f *FuncDef) {
	for _, b := range f.Blocks {
		var i int
		for _, r := range b.Instrs {
			if _, ok := r.(*Nop); !ok {
				b.Instrs[i] = r
				i++
			}
		}
		b.Instrs = b.Instrs[:i]
	}
}
