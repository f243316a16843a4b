// Package xref builds a static, file-backed cross-reference index over the
// declared symbols of many projects. The index is a directory of plain files
// that a static web server can serve without any backend.
//
// # Pipeline
//
// Indexing runs in two phases:
//
//  1. Generate: producers run concurrently, one per project. Each reports
//     its declared symbols, the references it finds to any symbol, and the
//     byte offset of every declaration marker it writes into its rendered
//     files. When all producers have returned, each project's declarations
//     (D.txt) and declaration map (A.txt) are written and the buffered
//     references are appended to per-symbol files under R/.
//
//  2. Finalize: the declarations of every project are merged into the
//     Huffman-compressed master index, each project gets its redirect
//     tables (a.html and friends) and one references page per referenced
//     symbol, and the markers of declarations nobody references are
//     overwritten with [ZeroID] in place.
//
// # Usage
//
//	e, err := xref.New("out")
//	if err != nil { ... }
//
//	ctx := context.Background()
//	_, err = e.Generate(ctx, xref.Producer{
//		Assembly: "Core",
//		Run: func(ctx context.Context, p *xref.Project) error {
//			return p.AddSymbol(sym)
//		},
//	})
//	stats, err := e.Finalize(ctx)
//
// Finalize can also run in a later process over a directory written by
// Generate: see [FinalizeDir].
//
// # Reading an index
//
// [Open] returns an [Index] over a finalized directory for name lookup,
// redirect resolution and reference aggregation. The build manifest
// (xref.db) records the table layout and a hash of every artifact so an
// index can be checked for tampering or partial copies.
package xref
