// Package huffman implements the prefix codec used to shrink symbol
// descriptions in the master index.
//
// A Tree is built from the byte-frequency distribution of a corpus. Every
// byte value 0-255 gets a leaf, absent bytes with frequency zero, so any byte
// string can be compressed with any built tree. Codes are packed most
// significant bit first. The last partial byte is padded with the leading
// bits of the deepest code; a 256-leaf tree always has a code of at least
// eight bits, so padding never completes a symbol and decoding simply stops
// when the input runs out mid-code.
//
// Serialized form (post-order):
//
//	leaf   = originalByte, mappedCode
//	branch = left, right, 0xFF
//
// mappedCode is the leaf's code length in bits. Construction moves the 0xFF
// leaf to the leftmost position, which is the only position where a leaf can
// start on an empty decoder stack, so a leading 0xFF is never mistaken for a
// branch terminator.
package huffman

import (
	"container/heap"
	"strings"

	"github.com/jward/xref/internal/indexerr"
)

// sentinel terminates a branch in the serialized tree.
const sentinel = 0xFF

// Node is a leaf or a branch of a Tree.
type Node struct {
	left, right *Node
	symbol      byte
	code        byte
	leaf        bool
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.leaf }

// Tree is an immutable prefix code.
type Tree struct {
	root    *Node
	codes   [256][]byte // bit values, nil when the byte has no leaf
	deepest []byte
}

// Frequencies counts byte occurrences across a corpus.
type Frequencies [256]uint64

// Add counts the bytes of s.
func (f *Frequencies) Add(s string) {
	for i := 0; i < len(s); i++ {
		f[s[i]]++
	}
}

// Build constructs a tree from frequencies. Ties are broken by insertion
// order: leaves enter in byte order and merged branches are numbered as they
// are created, so identical frequencies always give an identical tree.
func Build(f *Frequencies) *Tree {
	q := make(nodeQueue, 0, 256)
	for b := 0; b < 256; b++ {
		q = append(q, queued{
			node: &Node{symbol: byte(b), leaf: true},
			freq: f[b],
			seq:  b,
		})
	}
	heap.Init(&q)

	seq := 256
	for q.Len() > 1 {
		left := heap.Pop(&q).(queued)
		right := heap.Pop(&q).(queued)
		heap.Push(&q, queued{
			node: &Node{left: left.node, right: right.node},
			freq: left.freq + right.freq,
			seq:  seq,
		})
		seq++
	}

	root := heap.Pop(&q).(queued).node
	hoist(root, sentinel)
	return newTree(root)
}

// BuildFromStrings counts the corpus and builds a tree.
func BuildFromStrings(corpus []string) *Tree {
	var f Frequencies
	for _, s := range corpus {
		f.Add(s)
	}
	return Build(&f)
}

// hoist swaps children along the path to the leaf for b so that it becomes
// the leftmost leaf. Code lengths are unchanged.
func hoist(n *Node, b byte) bool {
	if n.leaf {
		return n.symbol == b
	}
	if hoist(n.left, b) {
		return true
	}
	if hoist(n.right, b) {
		n.left, n.right = n.right, n.left
		return true
	}
	return false
}

func newTree(root *Node) *Tree {
	t := &Tree{root: root}
	var path []byte
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.leaf {
			code := make([]byte, len(path))
			copy(code, path)
			n.code = byte(len(code))
			t.codes[n.symbol] = code
			if len(code) > len(t.deepest) {
				t.deepest = code
			}
			return
		}
		path = append(path, 0)
		walk(n.left)
		path[len(path)-1] = 1
		walk(n.right)
		path = path[:len(path)-1]
	}
	walk(root)
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Code returns the code for b as a string of '0' and '1', or "" when b has
// no leaf.
func (t *Tree) Code(b byte) string {
	c := t.codes[b]
	var sb strings.Builder
	for _, bit := range c {
		sb.WriteByte('0' + bit)
	}
	return sb.String()
}

// Compress encodes the bytes of s.
func (t *Tree) Compress(s string) ([]byte, error) {
	var w bitWriter
	for i := 0; i < len(s); i++ {
		code := t.codes[s[i]]
		if code == nil {
			return nil, indexerr.InconsistentReference("huffman compress", "byte 0x%02x has no code", s[i])
		}
		w.write(code)
	}
	if rem := w.n % 8; rem != 0 {
		pad := 8 - rem
		if len(t.deepest) <= pad {
			return nil, indexerr.InconsistentReference("huffman compress", "tree too shallow to pad %d bits", pad)
		}
		w.write(t.deepest[:pad])
	}
	return w.buf, nil
}

// Decompress decodes data produced by Compress with the same tree.
func (t *Tree) Decompress(data []byte) (string, error) {
	out := make([]byte, 0, len(data)*2)
	n := t.root
	pending := 0
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			if (b>>uint(i))&1 == 0 {
				n = n.left
			} else {
				n = n.right
			}
			pending++
			if n.leaf {
				out = append(out, n.symbol)
				n = t.root
				pending = 0
			}
		}
	}
	if pending >= 8 {
		return "", indexerr.CorruptIndex("huffman decompress", "", "%d trailing bits do not form a code", pending)
	}
	return string(out), nil
}

type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) write(bits []byte) {
	for _, bit := range bits {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if bit == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> uint(w.n%8)
		}
		w.n++
	}
}

type queued struct {
	node *Node
	freq uint64
	seq  int
}

type nodeQueue []queued

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].freq != q[j].freq {
		return q[i].freq < q[j].freq
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queued)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
