// Package scope implements the compiler's name-resolution model: a single
// global map plus a LIFO stack of per-block maps, as described by the
// scope/symbol component of the front end.
package scope

import (
	"fmt"

	"wizardc.dev/wizardc/pkg/token"
	"wizardc.dev/wizardc/pkg/types"
	"wizardc.dev/wizardc/pkg/utils"
)

type Storage int

const (
	Global Storage = iota
	Local
)

type SymbolKind int

const (
	VarSymbol SymbolKind = iota
	ArraySymbol
	FuncSymbol
)

// Symbol is what a name resolves to: its declaring token (for diagnostics),
// its type, where it lives, and (for locals) its frame offset.
type Symbol struct {
	Name    string
	Tok     token.Token
	Type    *types.Type
	Storage Storage
	Offset  int64 // %rbp-relative for locals, unused (0) for globals/functions
	Kind    SymbolKind
}

// Table is the parser-owned scope stack: one map per open block plus a
// single global map consulted only after every open block has been
// searched.
type Table struct {
	blocks utils.Stack[map[string]*Symbol]
	global map[string]*Symbol
}

func New() *Table {
	return &Table{global: make(map[string]*Symbol)}
}

// PushBlock opens a new innermost scope, e.g. on entering a function body,
// a brace block, or a for-loop's own scope.
func (t *Table) PushBlock() {
	t.blocks.Push(make(map[string]*Symbol))
}

// PopBlock closes the innermost scope; every name it shadowed becomes
// visible again, and every name declared only in it goes out of scope.
func (t *Table) PopBlock() {
	if _, err := t.blocks.Pop(); err != nil {
		panic(fmt.Sprintf("scope: PopBlock with no open block: %v", err))
	}
}

// Declare inserts sym into the innermost open block (or the global map if
// no block is open), rejecting a redeclaration within that same block.
// Shadowing an outer-block or global name is legal and not checked here.
func (t *Table) Declare(sym *Symbol) error {
	block, ok := t.currentBlock()
	if !ok {
		if _, exists := t.global[sym.Name]; exists {
			return fmt.Errorf("cannot redefine '%s' in the same scope", sym.Name)
		}
		t.global[sym.Name] = sym
		return nil
	}

	if _, exists := block[sym.Name]; exists {
		return fmt.Errorf("cannot redefine '%s' in the same scope", sym.Name)
	}
	block[sym.Name] = sym
	return nil
}

// DeclareGlobal always inserts into the global map regardless of any open
// block, used for function symbols so they remain callable from inside
// their own or any other block.
func (t *Table) DeclareGlobal(sym *Symbol) error {
	if _, exists := t.global[sym.Name]; exists {
		return fmt.Errorf("cannot redefine '%s' in the same scope", sym.Name)
	}
	t.global[sym.Name] = sym
	return nil
}

// Resolve walks open blocks from innermost to outermost, falling through
// to the global map if no block binds the name.
func (t *Table) Resolve(name string) (*Symbol, bool) {
	found, ok := resolveInBlocks(&t.blocks, name)
	if ok {
		return found, true
	}
	sym, ok := t.global[name]
	return sym, ok
}

func resolveInBlocks(blocks *utils.Stack[map[string]*Symbol], name string) (*Symbol, bool) {
	var result *Symbol
	var found bool
	for block := range blocks.Iterator() {
		if sym, ok := block[name]; ok {
			result, found = sym, true
			break
		}
	}
	return result, found
}

func (t *Table) currentBlock() (map[string]*Symbol, bool) {
	block, err := t.blocks.Top()
	if err != nil {
		return nil, false
	}
	return block, true
}
