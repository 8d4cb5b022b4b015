// Package ast defines the type-annotated abstract syntax tree the lowering
// core consumes (§3, §6). The parser and semantic/type-inference frontend
// that produce this tree are out of scope (§1) — this package only pins
// the shape the frontend is contracted to hand the compiler.
package ast

import "github.com/chazu/corelower/typesystem"

// Pos is a source location, carried on every node so compiler errors and
// the node map (§6) can point back at source text.
type Pos struct {
	Line, Column int
}

// Node is the closed set of AST variants enumerated in §3. Every node
// carries a resolved Type; the lowering core re-reads it on every visit
// rather than caching it, since the frontend may re-type nodes between
// compilations (§5).
type Node interface {
	Pos() Pos
	Type() typesystem.Type
	node()
}

type base struct {
	P Pos
	T typesystem.Type
}

func (b *base) Pos() Pos               { return b.P }
func (b *base) Type() typesystem.Type  { return b.T }
func (*base) node()                    {}

// --- Literals ---

type NilLiteral struct{ base }
type BoolLiteral struct {
	base
	Value bool
}
type NumberLiteral struct {
	base
	Raw string // re-emitted verbatim when autocasting to a target numeric kind (§4.7 Call rule 5)
}
type CharLiteral struct {
	base
	Value rune
}
type StringLiteral struct {
	base
	Value string
}
type SymbolLiteral struct {
	base
	Value string
}
type TupleLiteral struct {
	base
	Elements []Node
}
type NamedTupleLiteral struct {
	base
	Names    []string
	Elements []Node
}

// --- Variable / constant references ---

type Var struct {
	base
	Name string
}
type InstanceVar struct {
	base
	Name string
}
type ClassVar struct {
	base
	Name string
}
type Underscore struct{ base }

// Path is a reference to a constant (§4.4, §4.7 struct receiver rules).
type Path struct {
	base
	Name string
}

// --- Statements / control flow ---

type Assign struct {
	base
	Target Node // Var | InstanceVar | ClassVar | Underscore | Path
	Value  Node
}

type If struct {
	base
	Cond             Node
	Then, Else       Node
	CondKnownTruthy  bool // not read by lowering; §4.7 "If" folding uses CondKnown/CondKnownValue
	CondKnown        bool
	CondKnownValue   bool
}

type While struct {
	base
	Cond Node
	Body Node
}

type Return struct {
	base
	Value Node // nil for bare `return`
}
type Break struct {
	base
	Value Node
}
type Next struct {
	base
	Value Node
}
type Yield struct {
	base
	Args []Node
}

type Call struct {
	base
	Receiver    Node // nil for program-scope calls
	Name        string
	Args        []Node
	NamedArgs   []NamedArg
	Block       *Block // nil if no block passed
	TargetDefs  []*Def // non-empty; multiple entries trigger multidispatch (C5)
	IsLibCall   bool   // true when Receiver's type is a Lib type (§4.7 FFI call)
}

type NamedArg struct {
	Name  string
	Value Node
}

type Block struct {
	base
	Args       []BlockArg
	Vars       map[string]typesystem.Type
	Body       Node
	BreakType  typesystem.Type // nil if the block never breaks
}

type BlockArg struct {
	Name string
	Type typesystem.Type
}

type Def struct {
	base
	Owner      typesystem.Type
	Selector   string
	Params     []Param
	Vars       map[string]typesystem.Type
	Body       Node
	IsPrimitive bool
	PrimitiveName string // intrinsic opcode name when IsPrimitive
}

type Param struct {
	Name string
	Type typesystem.Type
}

type Expressions struct {
	base
	Children []Node
}

type PointerOf struct {
	base
	Target Node // Var | InstanceVar | ClassVar
}
type SizeOf struct {
	base
	Of typesystem.Type
}
type TypeOf struct {
	base
	Of Node
}
type IsA struct {
	base
	Subject Node
	Target  typesystem.Type
}
type Cast struct {
	base
	Subject Node
	Target  typesystem.Type
}
type NilableCast struct {
	base
	Subject Node
	Target  typesystem.Type
}
type Not struct {
	base
	Subject Node
}

type ReadInstanceVar struct {
	base
	Receiver Node
	Name     string
}

type Out struct {
	base
	Target Node // underlying variable for an FFI out-parameter
}

type UninitializedVar struct {
	base
	Name string
}

type ProcLiteral struct {
	base
	Def      *Def
	Captures []string // non-empty is rejected per §4.7/§9
}

type ExceptionHandler struct {
	base
	Body    Node
	Rescues []RescueClause // SPEC_FULL supplement; empty means body+ensure only
	Ensure  Node           // nil if no ensure
}

// RescueClause binds a caught exception, optionally by name, and guards on
// a declared type via the same is_a?/branch cascade as multidispatch.
type RescueClause struct {
	Types []typesystem.Type
	Bind  string // empty if the exception value is not bound
	Body  Node
}

// Declarations lower to no-ops or to their body per §3.
type ClassDecl struct {
	base
	Body Node
}
type ModuleDecl struct {
	base
	Body Node
}
type EnumDecl struct {
	base
	Body Node
}
type LibDecl struct {
	base
	Body Node
}
type FunDecl struct{ base }
type MacroDecl struct{ base }
type AliasDecl struct{ base }
type AnnotationDecl struct{ base }
type IncludeDecl struct{ base }
type ExtendDecl struct{ base }
type TypeDeclaration struct{ base }
type VisibilityModifier struct {
	base
	Body Node
}

// FileNode wraps a file's top-level body (§4.7 "FileNode").
type FileNode struct {
	base
	Body Node
}

// Unreachable marks dead code the frontend has already proven unreachable.
type Unreachable struct{ base }
