package xref

import (
	"github.com/jward/xref/internal/config"
	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/redirect"
	"github.com/jward/xref/internal/refs"
	"github.com/jward/xref/internal/store"
	"github.com/jward/xref/internal/symbols"
)

// Public type aliases for the internal types used in the Engine and Index
// APIs. These are Go type aliases (=), identical to the internal types at
// compile time.

type Symbol = symbols.Info
type Reference = refs.Reference
type ReferenceKind = refs.Kind
type Aggregate = refs.Aggregate
type Location = declmap.Location
type Target = redirect.Target
type Config = config.Config
type Manifest = store.Manifest

// Reference kinds, in rendering order.
const (
	DerivedType                   = refs.KindDerivedType
	InterfaceInheritance          = refs.KindInterfaceInheritance
	InterfaceImplementation       = refs.KindInterfaceImplementation
	Override                      = refs.KindOverride
	InterfaceMemberImplementation = refs.KindInterfaceMemberImplementation
	Instantiation                 = refs.KindInstantiation
	Write                         = refs.KindWrite
	Read                          = refs.KindRead
	ReferenceUsage                = refs.KindReference
	GuidUsage                     = refs.KindGuidUsage
	EmptyArrayAllocation          = refs.KindEmptyArrayAllocation
	MSBuildPropertyAssignment     = refs.KindMSBuildPropertyAssignment
	MSBuildPropertyUsage          = refs.KindMSBuildPropertyUsage
	MSBuildItemAssignment         = refs.KindMSBuildItemAssignment
	MSBuildItemUsage              = refs.KindMSBuildItemUsage
	MSBuildTargetDeclaration      = refs.KindMSBuildTargetDeclaration
	MSBuildTargetUsage            = refs.KindMSBuildTargetUsage
	MSBuildTaskDeclaration        = refs.KindMSBuildTaskDeclaration
	MSBuildTaskUsage              = refs.KindMSBuildTaskUsage
)

// ZeroID is the marker written over declarations without references.
const ZeroID = symbols.ZeroID

// SymbolID derives the numeric id of a fully qualified signature.
func SymbolID(signature string) uint64 { return symbols.SymbolID(signature) }

// FormatID renders an id as its fixed-width marker.
func FormatID(id uint64) string { return symbols.FormatID(id) }
