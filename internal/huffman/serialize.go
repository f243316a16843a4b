package huffman

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/jward/xref/internal/indexerr"
)

// MarshalBinary serializes the tree in post-order.
func (t *Tree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	var visit func(n *Node)
	visit = func(n *Node) {
		if n.leaf {
			buf.WriteByte(n.symbol)
			buf.WriteByte(n.code)
			return
		}
		visit(n.left)
		visit(n.right)
		buf.WriteByte(sentinel)
	}
	visit(t.root)
	return buf.Bytes(), nil
}

// WriteTo writes the serialized tree to w.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	data, err := t.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Parse deserializes a tree produced by MarshalBinary.
func Parse(data []byte) (*Tree, error) {
	return ReadTree(bytes.NewReader(data))
}

// ReadTree reads a serialized tree until end of stream, or until a 0xFF
// terminator finds a single completed node on the stack.
func ReadTree(r io.Reader) (*Tree, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	const op = "read huffman tree"
	var stack []*Node
	pos := 0
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, indexerr.IO(op, "", err)
		}
		pos++

		if b == sentinel && len(stack) > 0 {
			if len(stack) == 1 {
				break
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, &Node{left: left, right: right})
			continue
		}

		code, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil, indexerr.CorruptIndex(op, "", "truncated leaf at byte %d", pos)
		}
		if err != nil {
			return nil, indexerr.IO(op, "", err)
		}
		pos++
		stack = append(stack, &Node{symbol: b, code: code, leaf: true})
	}

	if len(stack) != 1 {
		return nil, indexerr.CorruptIndex(op, "", "stream ended with %d unmerged nodes", len(stack))
	}
	root := stack[0]
	if root.leaf {
		return nil, indexerr.CorruptIndex(op, "", "tree has a single leaf")
	}

	recorded := make(map[*Node]byte)
	var seen [256]bool
	var check func(n *Node) error
	check = func(n *Node) error {
		if n.leaf {
			if seen[n.symbol] {
				return indexerr.CorruptIndex(op, "", "duplicate leaf 0x%02x", n.symbol)
			}
			seen[n.symbol] = true
			recorded[n] = n.code
			return nil
		}
		if err := check(n.left); err != nil {
			return err
		}
		return check(n.right)
	}
	if err := check(root); err != nil {
		return nil, err
	}

	t := newTree(root)
	for n, code := range recorded {
		if n.code != code {
			return nil, indexerr.CorruptIndex(op, "", "leaf 0x%02x records code length %d, depth is %d", n.symbol, code, n.code)
		}
	}
	return t, nil
}
