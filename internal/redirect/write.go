package redirect

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jward/xref/internal/indexerr"
)

// RootFile is the entry table of a project.
const RootFile = "a.html"

const scriptHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><script src="../scripts.js"></script></head><body><script>
`

const scriptFoot = "</script></body></html>\n"

// Write emits the root table, every shard table and every disambiguation
// page into dir.
func (r *Result) Write(dir string) error {
	if err := writeFile(filepath.Join(dir, RootFile), r.writeRoot); err != nil {
		return err
	}
	for i := range r.Tables {
		t := &r.Tables[i]
		if err := writeFile(filepath.Join(dir, t.FileName()), func(w io.Writer) error {
			return r.writeTable(w, t)
		}); err != nil {
			return err
		}
	}
	for i := range r.Partials {
		p := &r.Partials[i]
		if err := writeFile(filepath.Join(dir, filepath.FromSlash(p.FileName())), p.write); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) writeRoot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(scriptHead)
	bw.WriteString("var shards = [")
	for i := range r.Tables {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString(strconv.Quote(r.Tables[i].Prefix))
	}
	bw.WriteString("];\n")
	fmt.Fprintf(bw, "redirectToNextLevelRedirectFile(shards, %d);\n", r.SignificantIDLength)
	bw.WriteString(scriptFoot)
	return bw.Flush()
}

func (r *Result) writeTable(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(scriptHead)
	bw.WriteString("var f = [\n")
	for _, f := range t.Files {
		bw.WriteString(strconv.Quote(f))
		bw.WriteString(",\n")
	}
	bw.WriteString("];\nvar m = new Object();\n")
	for _, e := range t.Entries {
		if e.File < 0 {
			fmt.Fprintf(bw, "m[%s]=%s;\n", strconv.Quote(e.Key), strconv.Quote(e.Partial))
			continue
		}
		fmt.Fprintf(bw, "m[%s]=f[%d];\n", strconv.Quote(e.Key), e.File)
	}
	fmt.Fprintf(bw, "redirect(m, %d);\n", r.SignificantIDLength)
	bw.WriteString(scriptFoot)
	return bw.Flush()
}

func (p *Partial) write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n", html.EscapeString(p.Key))
	for _, c := range p.Candidates {
		fmt.Fprintf(bw, "<a href=\"../%s#%s\">%s</a><br/>\n",
			html.EscapeString(c.Path), html.EscapeString(c.ID), html.EscapeString(c.Path))
	}
	bw.WriteString("</body></html>\n")
	return bw.Flush()
}

func writeFile(path string, fn func(io.Writer) error) error {
	const op = "write redirect"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return indexerr.IO(op, path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return indexerr.IO(op, path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return indexerr.IO(op, path, err)
	}
	if err := f.Close(); err != nil {
		return indexerr.IO(op, path, err)
	}
	return nil
}
