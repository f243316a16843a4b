package refs

import (
	"fmt"
	"strconv"
)

// Kind classifies a reference. The numeric values are persisted and give the
// order of kind groups on a references page.
type Kind int

const (
	KindDerivedType Kind = iota
	KindInterfaceInheritance
	KindInterfaceImplementation
	KindOverride
	KindInterfaceMemberImplementation
	KindInstantiation
	KindWrite
	KindRead
	KindReference
	KindGuidUsage
	KindEmptyArrayAllocation
	KindMSBuildPropertyAssignment
	KindMSBuildPropertyUsage
	KindMSBuildItemAssignment
	KindMSBuildItemUsage
	KindMSBuildTargetDeclaration
	KindMSBuildTargetUsage
	KindMSBuildTaskDeclaration
	KindMSBuildTaskUsage

	kindCount
)

var kindNames = [kindCount]string{
	"DerivedType",
	"InterfaceInheritance",
	"InterfaceImplementation",
	"Override",
	"InterfaceMemberImplementation",
	"Instantiation",
	"Write",
	"Read",
	"Reference",
	"GuidUsage",
	"EmptyArrayAllocation",
	"MSBuildPropertyAssignment",
	"MSBuildPropertyUsage",
	"MSBuildItemAssignment",
	"MSBuildItemUsage",
	"MSBuildTargetDeclaration",
	"MSBuildTargetUsage",
	"MSBuildTaskDeclaration",
	"MSBuildTaskUsage",
}

// headerFormats take the count, the plural suffix and the symbol name.
var headerFormats = [kindCount]string{
	KindDerivedType:                   "%d type%s derived from %s",
	KindInterfaceInheritance:          "%d interface%s inheriting from %s",
	KindInterfaceImplementation:       "%d implementation%s of %s",
	KindOverride:                      "%d override%s of %s",
	KindInterfaceMemberImplementation: "%d implementation%s of %s",
	KindInstantiation:                 "%d instantiation%s of %s",
	KindWrite:                         "%d write%s to %s",
	KindRead:                          "%d read%s of %s",
	KindReference:                     "%d reference%s to %s",
	KindGuidUsage:                     "%d usage%s of Guid %s",
	KindEmptyArrayAllocation:          "%d allocation%s of empty arrays",
	KindMSBuildPropertyAssignment:     "%d assignment%s to MSBuild property %s",
	KindMSBuildPropertyUsage:          "%d usage%s of MSBuild property %s",
	KindMSBuildItemAssignment:         "%d assignment%s to MSBuild item %s",
	KindMSBuildItemUsage:              "%d usage%s of MSBuild item %s",
	KindMSBuildTargetDeclaration:      "%d declaration%s of MSBuild target %s",
	KindMSBuildTargetUsage:            "%d usage%s of MSBuild target %s",
	KindMSBuildTaskDeclaration:        "%d import%s of MSBuild task %s",
	KindMSBuildTaskUsage:              "%d call%s to MSBuild task %s",
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k >= 0 && k < kindCount }

func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Header renders the group heading for count references of kind k to name.
func Header(k Kind, count int, name string) string {
	if !k.Valid() {
		return fmt.Sprintf("%d %s", count, k)
	}
	plural := "s"
	if count == 1 {
		plural = ""
	}
	if k == KindEmptyArrayAllocation {
		return fmt.Sprintf(headerFormats[k], count, plural)
	}
	return fmt.Sprintf(headerFormats[k], count, plural, name)
}
