package symbols

// kindOrder lists textual kinds from most to least prominent. Types come
// first so that a search for a name shows the type before its members.
var kindOrder = []string{
	"class",
	"struct",
	"interface",
	"enum",
	"delegate",
	"module",
	"constructor",
	"method",
	"property",
	"indexer",
	"event",
	"field",
	"operator",
	"namespace",
	"file",
	"msbuild property",
	"msbuild item",
	"msbuild target",
	"msbuild task",
}

var kindRanks = func() map[string]uint16 {
	m := make(map[string]uint16, len(kindOrder))
	for i, k := range kindOrder {
		m[k] = uint16(i)
	}
	return m
}()

// KindRank returns the sort priority of a textual kind. Unknown kinds sort
// after every known one.
func KindRank(kind string) uint16 {
	if r, ok := kindRanks[kind]; ok {
		return r
	}
	return uint16(len(kindOrder))
}
