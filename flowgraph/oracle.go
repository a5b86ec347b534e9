package flowgraph

import (
	"fmt"

	"github.com/eaburns/mir/loc"
)

// VariantLayout is the size of a type and,
// for a union type, the sizes of its variants
// in the order of the type's cases.
//
// A variant's size counts the bytes from the start of the value
// through the end of the variant's payload, tag included;
// copying that many bytes copies the whole value of that variant.
type VariantLayout struct {
	TotalSize    int64
	VariantSizes []int64
}

// A LayoutOracle reports the layout of types.
type LayoutOracle interface {
	// Layout returns the layout of a type.
	// If the layout cannot be determined,
	// for example if the type contains a type parameter,
	// the error is a *LayoutError.
	Layout(Type) (*VariantLayout, error)
}

// LayoutError is returned when a type has no known layout.
type LayoutError struct {
	Type   Type
	Reason string
}

func (err *LayoutError) Error() string {
	return fmt.Sprintf("no layout for %s: %s", err.Type, err.Reason)
}

// InternalError reports an inconsistency found by a pass.
// It is a compiler bug, not a problem with the program being compiled.
// The pass skips the affected code and continues.
type InternalError struct {
	Func string
	L    loc.Loc
	Err  error
}

func (err *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", err.Func, err.Err)
}

func (err *InternalError) Unwrap() error { return err.Err }
