package flowgraph

import "fmt"

// Verify returns the structural errors of f:
// misnumbered blocks or locals, misplaced terminals,
// inconsistent edges, references to locals not in f,
// and temporaries used outside of their storage markers.
func Verify(f *FuncDef) []error {
	var errs []error
	errorf := func(format string, vs ...interface{}) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]interface{}{f.Name}, vs...)...))
	}

	locals := make(map[*Local]bool)
	for i, l := range f.Locals {
		if l.Num != i {
			errorf("local %d has number %d", i, l.Num)
		}
		locals[l] = true
	}
	blocks := make(map[*BasicBlock]bool)
	for _, b := range f.Blocks {
		blocks[b] = true
	}
	for i, b := range f.Blocks {
		if b.Num != i {
			errorf("block %d has number %d", i, b.Num)
		}
		if b.Func != f {
			errorf("block %d belongs to another function", b.Num)
		}
		if b.Terminal() == nil {
			errorf("block %d is not terminated", b.Num)
		}
		for j, r := range b.Instrs {
			if _, ok := r.(Terminal); ok && j != len(b.Instrs)-1 {
				errorf("block %d, instruction %d: terminal %s is not last", b.Num, j, r)
			}
			for _, l := range append(r.locals(), markedLocal(r)...) {
				if !locals[l] {
					errorf("block %d, instruction %d: %s uses local _%d not in the function", b.Num, j, r, l.Num)
				}
			}
		}
		for _, out := range b.Out() {
			if !blocks[out] {
				errorf("block %d's out set contains a non-function block", b.Num)
			} else if !containsBlock(out.In(), b) {
				errorf("block %d's out set contains %d, but %d's in set does not contain %d", b.Num, out.Num, out.Num, b.Num)
			}
		}
		for _, in := range b.In() {
			if !blocks[in] {
				errorf("block %d's in set contains a non-function block", b.Num)
			} else if !containsBlock(in.Out(), b) {
				errorf("block %d's in set contains %d, but %d's out set does not contain %d", b.Num, in.Num, in.Num, b.Num)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return append(errs, verifyStorage(f)...)
}

func markedLocal(r Instruction) []*Local {
	switch r := r.(type) {
	case *StorageLive:
		return []*Local{r.Local}
	case *StorageDead:
		return []*Local{r.Local}
	}
	return nil
}

func containsBlock(bs []*BasicBlock, b *BasicBlock) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}

type storage int

const (
	dead storage = iota
	live
	maybeLive
)

func (s storage) join(o storage) storage {
	if s == o {
		return s
	}
	return maybeLive
}

// verifyStorage checks that each temporary is only used while live,
// never made live twice, and never killed twice.
// Non-temporary locals are always live.
func verifyStorage(f *FuncDef) []error {
	if len(f.Blocks) == 0 {
		return nil
	}
	var temps []*Local
	for _, l := range f.Locals {
		if l.Temp {
			temps = append(temps, l)
		}
	}
	if len(temps) == 0 {
		return nil
	}

	// Forward dataflow to find the state of each temporary at block entry.
	entry := make(map[*BasicBlock]map[*Local]storage)
	entry[f.Blocks[0]] = make(map[*Local]storage)
	todo := []*BasicBlock{f.Blocks[0]}
	for len(todo) > 0 {
		b := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		state := copyStorage(entry[b])
		for _, r := range b.Instrs {
			switch r := r.(type) {
			case *StorageLive:
				state[r.Local] = live
			case *StorageDead:
				state[r.Local] = dead
			}
		}
		for _, o := range b.Out() {
			in, ok := entry[o]
			if !ok {
				entry[o] = copyStorage(state)
				todo = append(todo, o)
				continue
			}
			changed := false
			for _, t := range temps {
				if j := in[t].join(state[t]); j != in[t] {
					in[t] = j
					changed = true
				}
			}
			if changed {
				todo = append(todo, o)
			}
		}
	}

	var errs []error
	for _, b := range f.Blocks {
		state, ok := entry[b]
		if !ok {
			continue // unreachable
		}
		state = copyStorage(state)
		for j, r := range b.Instrs {
			switch r := r.(type) {
			case *StorageLive:
				if state[r.Local] != dead {
					errs = append(errs, fmt.Errorf("%s: block %d, instruction %d: %s of a live temporary", f.Name, b.Num, j, r))
				}
				state[r.Local] = live
				continue
			case *StorageDead:
				if state[r.Local] != live {
					errs = append(errs, fmt.Errorf("%s: block %d, instruction %d: %s of a dead temporary", f.Name, b.Num, j, r))
				}
				state[r.Local] = dead
				continue
			}
			for _, l := range r.locals() {
				if l.Temp && state[l] != live {
					errs = append(errs, fmt.Errorf("%s: block %d, instruction %d: %s uses dead temporary _%d", f.Name, b.Num, j, r, l.Num))
				}
			}
		}
	}
	return errs
}

func copyStorage(s map[*Local]storage) map[*Local]storage {
	c := make(map[*Local]storage, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}
