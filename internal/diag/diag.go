package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/fcrcheck/internal/ir"
)

// Class is a family of diagnostics.
type Class string

const (
	ClassDeclaration  Class = "DeclarationError"
	ClassEffect       Class = "EffectError"
	ClassPolicyBridge Class = "PolicyBridgeError"
	ClassConcurrency  Class = "ConcurrencyError"
	ClassGraph        Class = "GraphError"
	ClassInternal     Class = "InternalError"
)

// Kind is a concrete diagnostic.
type Kind string

const (
	DuplicateModule    Kind = "DuplicateModuleError"
	DuplicateImpl      Kind = "DuplicateImplError"
	OrphanImpl         Kind = "OrphanImplError"
	UnknownTrait       Kind = "UnknownTraitError"
	MissingImplMethod  Kind = "MissingImplMethodError"
	EffectMismatch     Kind = "EffectMismatchError"
	AwaitOutsideAsync  Kind = "AwaitOutsideAsyncError"
	AsyncContext       Kind = "AsyncContextError"
	BudgetExceeded     Kind = "BudgetExceededError"
	OwnershipEscape    Kind = "OwnershipEscapeError"
	GcToBorrow         Kind = "GcToBorrowError"
	FfiAnnotation      Kind = "FfiAnnotationError"
	UnpinnedForeignPtr Kind = "UnpinnedForeignPointerError"
	MissingCapability  Kind = "MissingCapabilityError"
	UnresolvedCall     Kind = "UnresolvedCallError"
	Internal           Kind = "InternalError"
)

type kindInfo struct {
	class Class
	code  string
}

var kinds = map[Kind]kindInfo{
	DuplicateModule:    {ClassDeclaration, "E201"},
	DuplicateImpl:      {ClassDeclaration, "E202"},
	OrphanImpl:         {ClassDeclaration, "E203"},
	UnknownTrait:       {ClassDeclaration, "E204"},
	MissingImplMethod:  {ClassDeclaration, "E205"},
	EffectMismatch:     {ClassEffect, "E301"},
	AwaitOutsideAsync:  {ClassEffect, "E302"},
	AsyncContext:       {ClassEffect, "E303"},
	BudgetExceeded:     {ClassEffect, "E304"},
	OwnershipEscape:    {ClassPolicyBridge, "E401"},
	GcToBorrow:         {ClassPolicyBridge, "E402"},
	FfiAnnotation:      {ClassPolicyBridge, "E403"},
	UnpinnedForeignPtr: {ClassPolicyBridge, "E404"},
	MissingCapability:  {ClassConcurrency, "E501"},
	UnresolvedCall:     {ClassGraph, "E601"},
	Internal:           {ClassInternal, "E901"},
}

// Class returns the taxonomy family of k. Unknown kinds are internal.
func (k Kind) Class() Class {
	if info, ok := kinds[k]; ok {
		return info.class
	}
	return ClassInternal
}

// Code returns the stable diagnostic code of k.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return kinds[Internal].code
}

// Kinds returns every known kind ordered by code.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sortKinds(out)
	return out
}

// Diagnostic is one verdict: (kind, location, message) plus context.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Code     string   `json:"code"`
	Class    Class    `json:"class"`
	Pos      ir.Pos   `json:"pos"`
	Function string   `json:"function,omitempty"`
	Message  string   `json:"message"`
	Chain    []string `json:"chain,omitempty"`
}

// New builds a diagnostic with code and class filled in from kind.
func New(kind Kind, pos ir.Pos, function string, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Code:     kind.Code(),
		Class:    kind.Class(),
		Pos:      pos,
		Function: function,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Internalf reports a defect in the engine rather than in the input.
func Internalf(pos ir.Pos, format string, args ...any) Diagnostic {
	return New(Internal, pos, "", format, args...)
}

// WithChain attaches an example call chain.
func (d Diagnostic) WithChain(chain []string) Diagnostic {
	d.Chain = append([]string(nil), chain...)
	return d
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", d.Code, d.Pos, d.Message)
	if len(d.Chain) > 0 {
		fmt.Fprintf(&b, " (via %s)", strings.Join(d.Chain, " → "))
	}
	return b.String()
}

// Is matches another Diagnostic of the same kind, so callers can use
// errors.Is(err, diag.Diagnostic{Kind: diag.OrphanImpl}).
func (d Diagnostic) Is(target error) bool {
	var t Diagnostic
	if errors.As(target, &t) {
		return t.Kind == d.Kind
	}
	return false
}

// IsKind reports whether err is a Diagnostic of the given kind.
func IsKind(err error, kind Kind) bool {
	var d Diagnostic
	if errors.As(err, &d) {
		return d.Kind == kind
	}
	return false
}
