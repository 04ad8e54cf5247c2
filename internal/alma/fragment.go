package alma

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

const indentUnit = "    "

// IsolateFragment returns the first node matching expr serialized as an
// indented UTF-8 document. A response without a matching node yields an
// empty payload.
func IsolateFragment(raw []byte, expr string) ([]byte, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SRU response: %w", err)
	}
	node, err := xmlquery.Query(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expr, err)
	}
	if node == nil {
		return []byte{}, nil
	}

	root, err := buildTree([]byte(node.OutputXMLWithOptions(xmlquery.WithOutputSelf(), xmlquery.WithPreserveSpace())))
	if err != nil {
		return nil, err
	}

	declareNamespaces(root, node)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	root.write(&buf, 0)
	return buf.Bytes(), nil
}

type element struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []*element
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func buildTree(src []byte) (*element, error) {
	decoder := xml.NewDecoder(bytes.NewReader(src))

	var root *element
	var stack []*element
	for {
		tok, err := decoder.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: qualified(t.Name), attrs: t.Copy().Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element %s", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("no XML element found")
	}
	return root, nil
}

// declareNamespaces copies the declarations in scope at node onto root for
// every prefix the fragment uses and does not declare itself. The nearest
// declaration wins.
func declareNamespaces(root *element, node *xmlquery.Node) {
	used := make(map[string]bool)
	root.collectPrefixes(used)

	for n := node.Parent; n != nil; n = n.Parent {
		for _, a := range n.Attr {
			var prefix string
			switch {
			case a.Name.Space == "xmlns":
				prefix = a.Name.Local
			case a.Name.Space == "" && a.Name.Local == "xmlns":
				prefix = ""
			default:
				continue
			}
			if !used[prefix] || root.hasAttr(qualified(a.Name)) {
				continue
			}
			root.attrs = append(root.attrs, xml.Attr{Name: a.Name, Value: a.Value})
		}
	}
}

// collectPrefixes records the namespace prefixes of every element and
// attribute name in the tree. The empty prefix stands for unprefixed elements.
func (e *element) collectPrefixes(used map[string]bool) {
	prefix := ""
	if i := strings.Index(e.name, ":"); i >= 0 {
		prefix = e.name[:i]
	}
	used[prefix] = true

	for _, a := range e.attrs {
		if a.Name.Space != "" && a.Name.Space != "xmlns" && a.Name.Space != "xml" {
			used[a.Name.Space] = true
		}
	}
	for _, child := range e.children {
		child.collectPrefixes(used)
	}
}

func (e *element) hasAttr(name string) bool {
	for _, a := range e.attrs {
		if qualified(a.Name) == name {
			return true
		}
	}
	return false
}

func (e *element) write(buf *bytes.Buffer, depth int) {
	pad := strings.Repeat(indentUnit, depth)
	buf.WriteString(pad)
	buf.WriteString("<" + e.name)
	for _, a := range e.attrs {
		buf.WriteString(" " + qualified(a.Name) + `="`)
		_ = xml.EscapeText(buf, []byte(a.Value))
		buf.WriteString(`"`)
	}

	text := e.text.String()
	if len(e.children) == 0 {
		if text == "" {
			buf.WriteString("/>\n")
			return
		}
		buf.WriteString(">")
		_ = xml.EscapeText(buf, []byte(text))
		buf.WriteString("</" + e.name + ">\n")
		return
	}

	buf.WriteString(">\n")
	// mixed content keeps its text ahead of the child elements
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		buf.WriteString(pad + indentUnit)
		_ = xml.EscapeText(buf, []byte(trimmed))
		buf.WriteString("\n")
	}
	for _, child := range e.children {
		child.write(buf, depth+1)
	}
	buf.WriteString(pad + "</" + e.name + ">\n")
}
