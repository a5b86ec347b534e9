package flowgraph

import (
	"fmt"
	"strings"
)

func (m *Mod) String() string                { return m.buildString(new(strings.Builder)).String() }
func (t *IntType) String() string            { return t.buildString(new(strings.Builder)).String() }
func (t *FloatType) String() string          { return t.buildString(new(strings.Builder)).String() }
func (t *AddrType) String() string           { return t.buildString(new(strings.Builder)).String() }
func (t *ArrayType) String() string          { return t.buildString(new(strings.Builder)).String() }
func (t *StructType) String() string         { return t.buildString(new(strings.Builder)).String() }
func (t *UnionType) String() string          { return t.buildString(new(strings.Builder)).String() }
func (t *ParamType) String() string          { return t.buildString(new(strings.Builder)).String() }
func (d *FuncDef) String() string            { return d.buildString(new(strings.Builder)).String() }
func (l *Local) String() string              { return l.buildString(new(strings.Builder)).String() }
func (b *BasicBlock) String() string         { return b.buildString(new(strings.Builder)).String() }
func (o *Copy) String() string               { return o.buildString(new(strings.Builder)).String() }
func (o *Move) String() string               { return o.buildString(new(strings.Builder)).String() }
func (o *Const) String() string              { return o.buildString(new(strings.Builder)).String() }
func (c *IntConst) String() string           { return c.buildString(new(strings.Builder)).String() }
func (c *ArrayConst) String() string         { return c.buildString(new(strings.Builder)).String() }
func (r *Use) String() string                { return r.buildString(new(strings.Builder)).String() }
func (r *Discriminant) String() string       { return r.buildString(new(strings.Builder)).String() }
func (r *AddressOf) String() string          { return r.buildString(new(strings.Builder)).String() }
func (r *BinaryOp) String() string           { return r.buildString(new(strings.Builder)).String() }
func (r *Assign) String() string             { return r.buildString(new(strings.Builder)).String() }
func (r *StorageLive) String() string        { return r.buildString(new(strings.Builder)).String() }
func (r *StorageDead) String() string        { return r.buildString(new(strings.Builder)).String() }
func (r *SetDiscriminant) String() string    { return r.buildString(new(strings.Builder)).String() }
func (r *CopyNonOverlapping) String() string { return r.buildString(new(strings.Builder)).String() }
func (r *Nop) String() string                { return r.buildString(new(strings.Builder)).String() }
func (r *Goto) String() string               { return r.buildString(new(strings.Builder)).String() }
func (r *If) String() string                 { return r.buildString(new(strings.Builder)).String() }
func (r *Return) String() string             { return r.buildString(new(strings.Builder)).String() }

func (m *Mod) buildString(s *strings.Builder) *strings.Builder {
	for _, f := range m.Funcs {
		if s.Len() > 0 {
			s.WriteString("\n\n")
		}
		f.buildString(s)
	}
	return s
}

func (t *IntType) buildString(s *strings.Builder) *strings.Builder {
	if t.Unsigned {
		fmt.Fprintf(s, "uint%d", t.Size)
	} else {
		fmt.Fprintf(s, "int%d", t.Size)
	}
	return s
}

func (t *FloatType) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, "float%d", t.Size)
	return s
}

func (t *AddrType) buildString(s *strings.Builder) *strings.Builder {
	if t.Mut {
		s.WriteString("*mut ")
	} else {
		s.WriteString("*const ")
	}
	return t.Elem.buildString(s)
}

func (t *ArrayType) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, "[%d]", t.Len)
	return t.Elem.buildString(s)
}

func (t *StructType) buildString(s *strings.Builder) *strings.Builder {
	if t.Name != "" {
		s.WriteString(t.Name)
		return s
	}
	s.WriteString("struct{")
	for i, f := range t.Fields {
		if i > 0 {
			s.WriteString("; ")
		}
		s.WriteString(f.Name)
		s.WriteRune(' ')
		f.Type.buildString(s)
	}
	s.WriteRune('}')
	return s
}

func (t *UnionType) buildString(s *strings.Builder) *strings.Builder {
	if t.Name != "" {
		s.WriteString(t.Name)
		return s
	}
	s.WriteString("union{")
	for i, c := range t.Cases {
		if i > 0 {
			s.WriteString("; ")
		}
		s.WriteString(c.Name)
		if c.Discr != nil {
			fmt.Fprintf(s, "=%d", *c.Discr)
		}
		if c.Type != nil {
			s.WriteRune(' ')
			c.Type.buildString(s)
		}
	}
	s.WriteRune('}')
	return s
}

func (t *ParamType) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString(t.Name)
	return s
}

func (d *FuncDef) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("func ")
	s.WriteString(d.Name)
	if len(d.TypeParms) > 0 {
		s.WriteRune('[')
		for i, p := range d.TypeParms {
			if i > 0 {
				s.WriteString(", ")
			}
			s.WriteString(p.Name)
		}
		s.WriteRune(']')
	}
	if len(d.Blocks) == 0 {
		return s
	}
	s.WriteString(" {")
	for _, l := range d.Locals {
		if l.Temp {
			s.WriteString("\n    temp ")
		} else {
			s.WriteString("\n    var ")
		}
		l.buildString(s)
		s.WriteRune(' ')
		l.Type.buildString(s)
	}
	for _, b := range d.Blocks {
		s.WriteRune('\n')
		b.buildString(s)
	}
	s.WriteString("\n}")
	return s
}

func (l *Local) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, "_%d", l.Num)
	return s
}

func (b *BasicBlock) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, "%d:\tin=[", b.Num)
	for i, in := range b.In() {
		if i > 0 {
			s.WriteString(", ")
		}
		fmt.Fprintf(s, "%d", in.Num)
	}
	s.WriteString("], out=[")
	for i, out := range b.Out() {
		if i > 0 {
			s.WriteString(", ")
		}
		fmt.Fprintf(s, "%d", out.Num)
	}
	s.WriteRune(']')
	for _, instr := range b.Instrs {
		if instr.Comment() != "" {
			s.WriteString("\n    // ")
			s.WriteString(instr.Comment())
		}
		s.WriteString("\n    ")
		instr.buildString(s)
	}
	return s
}

func (p Place) buildString(s *strings.Builder) *strings.Builder {
	p.Local.buildString(s)
	for _, x := range p.Proj {
		x.buildString(s)
	}
	return s
}

func (x Field) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, ".%d", x.Num)
	return s
}

func (x Downcast) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, ".(%d)", x.Case)
	return s
}

func (x Index) buildString(s *strings.Builder) *strings.Builder {
	s.WriteRune('[')
	x.Local.buildString(s)
	s.WriteRune(']')
	return s
}

func (x ConstIndex) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, "[%d]", x.Index)
	return s
}

func (Deref) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString(".*")
	return s
}

func (o *Copy) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("copy ")
	return o.Place.buildString(s)
}

func (o *Move) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("move ")
	return o.Place.buildString(s)
}

func (o *Const) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("const ")
	return o.Value.buildString(s)
}

func (c *IntConst) buildString(s *strings.Builder) *strings.Builder {
	c.T.buildString(s)
	s.WriteRune('(')
	c.buildValueString(s)
	s.WriteRune(')')
	return s
}

func (c *IntConst) buildValueString(s *strings.Builder) *strings.Builder {
	if c.T.Unsigned {
		fmt.Fprintf(s, "%d", c.Value)
		return s
	}
	// Sign-extend from T.Size bits.
	shift := 64 - uint(c.T.Size)
	fmt.Fprintf(s, "%d", int64(c.Value<<shift)>>shift)
	return s
}

func (c *ArrayConst) buildString(s *strings.Builder) *strings.Builder {
	c.T.buildString(s)
	s.WriteRune('{')
	for i, e := range c.Elems {
		if i > 0 {
			s.WriteString(", ")
		}
		if ic, ok := e.(*IntConst); ok {
			ic.buildValueString(s)
		} else {
			e.buildString(s)
		}
	}
	s.WriteRune('}')
	return s
}

func (r *Use) buildString(s *strings.Builder) *strings.Builder {
	return r.Operand.buildString(s)
}

func (r *Discriminant) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("discriminant(")
	r.Place.buildString(s)
	s.WriteRune(')')
	return s
}

func (r *AddressOf) buildString(s *strings.Builder) *strings.Builder {
	if r.Mut {
		s.WriteString("&mut ")
	} else {
		s.WriteString("&")
	}
	return r.Place.buildString(s)
}

func (r *BinaryOp) buildString(s *strings.Builder) *strings.Builder {
	r.X.buildString(s)
	fmt.Fprintf(s, " %s ", r.Op)
	return r.Y.buildString(s)
}

func (r *Assign) buildString(s *strings.Builder) *strings.Builder {
	r.Dst.buildString(s)
	s.WriteString(" = ")
	return r.Src.buildString(s)
}

func (r *StorageLive) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("live(")
	r.Local.buildString(s)
	s.WriteRune(')')
	return s
}

func (r *StorageDead) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("dead(")
	r.Local.buildString(s)
	s.WriteRune(')')
	return s
}

func (r *SetDiscriminant) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("discriminant(")
	r.Place.buildString(s)
	fmt.Fprintf(s, ") = %d", r.Case)
	return s
}

func (r *CopyNonOverlapping) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("copy_nonoverlapping(src=")
	r.Src.buildString(s)
	s.WriteString(", dst=")
	r.Dst.buildString(s)
	s.WriteString(", count=")
	r.Count.buildString(s)
	s.WriteRune(')')
	return s
}

func (r *Nop) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("nop")
	return s
}

func (r *Goto) buildString(s *strings.Builder) *strings.Builder {
	fmt.Fprintf(s, "goto %d", r.Dst.Num)
	return s
}

func (r *If) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("if ")
	r.Value.buildString(s)
	fmt.Fprintf(s, " == %d then %d else %d", r.X, r.Yes.Num, r.No.Num)
	return s
}

func (r *Return) buildString(s *strings.Builder) *strings.Builder {
	s.WriteString("return")
	return s
}

func (o OpKind) String() string {
	switch o {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Times:
		return "*"
	default:
		return fmt.Sprintf("OpKind(%d)", int(o))
	}
}
