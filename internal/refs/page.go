package refs

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"

	"github.com/jward/xref/internal/indexerr"
)

const pageHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title><link rel="stylesheet" href="../../styles.css"></head><body>
`

const pageFoot = "</body></html>\n"

// WritePage renders agg as a references page. Line text is already escaped
// and is written as is.
func WritePage(w io.Writer, agg *Aggregate) error {
	bw := bufio.NewWriter(w)
	name := html.EscapeString(agg.SymbolName)
	fmt.Fprintf(bw, pageHead, name)
	if len(agg.Kinds) == 0 {
		bw.WriteString("<div class=\"rH\">No references found</div>\n")
	}
	for _, k := range agg.Kinds {
		fmt.Fprintf(bw, "<div class=\"rH\">%s</div>\n", Header(k.Kind, k.Count, name))
		for _, a := range k.Assemblies {
			asm := html.EscapeString(a.Assembly)
			fmt.Fprintf(bw, "<div class=\"rA\">%s (%d)</div>\n<div class=\"rG\" id=\"%s\">\n", asm, a.Count, asm)
			for _, f := range a.Files {
				fmt.Fprintf(bw, "<div class=\"rF\"><div class=\"rN\">%s (%d)</div>\n", html.EscapeString(f.Path), f.Count)
				for _, l := range f.Lines {
					fmt.Fprintf(bw, "<a href=\"%s\"><b>%d</b>%s</a>\n", html.EscapeString(l.URL), l.Line, l.Rendered)
				}
				bw.WriteString("</div>\n")
			}
			bw.WriteString("</div>\n")
		}
	}
	bw.WriteString(pageFoot)
	if err := bw.Flush(); err != nil {
		return indexerr.IO("write references page", "", err)
	}
	return nil
}

// WritePageFile renders agg to the references page of its symbol.
func WritePageFile(outDir, assembly string, agg *Aggregate) error {
	path := PagePath(outDir, assembly, agg.SymbolID)
	return writeFile(path, func(w io.Writer) error { return WritePage(w, agg) })
}

// WriteNoReferencesPage writes the shared page that backpatched declaration
// markers link to.
func WriteNoReferencesPage(outDir, assembly, zeroID string) error {
	return WritePageFile(outDir, assembly, &Aggregate{SymbolID: zeroID, SymbolName: "No references"})
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return indexerr.IO("write references page", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return indexerr.IO("write references page", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return indexerr.IO("write references page", path, err)
	}
	return nil
}
