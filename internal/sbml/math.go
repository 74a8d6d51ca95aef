package sbml

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Math is a math element. In memory it holds an infix formula using
// + - * / ^ (or **), unary minus, parentheses, numbers and identifiers; on
// the wire it is MathML content markup.
type Math struct {
	Formula string
}

// mathNode is a generic MathML element.
type mathNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []mathNode `xml:",any"`
}

var operatorElements = map[string]string{
	"+":  "plus",
	"-":  "minus",
	"*":  "times",
	"/":  "divide",
	"^":  "power",
	"**": "power",
}

var elementOperators = map[string]string{
	"plus":   "+",
	"minus":  "-",
	"times":  "*",
	"divide": "/",
	"power":  "^",
}

// MarshalXML encodes the formula as MathML.
func (m Math) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	node, err := formulaNode(m.Formula)
	if err != nil {
		return err
	}
	start.Name = xml.Name{Space: MathMLNamespace, Local: "math"}
	return e.EncodeElement(mathNode{Children: []mathNode{node}}, start)
}

// UnmarshalXML decodes MathML into an infix formula.
func (m *Math) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var root mathNode
	if err := d.DecodeElement(&root, &start); err != nil {
		return err
	}
	if len(root.Children) != 1 {
		return fmt.Errorf("math element must have exactly one child, got %d", len(root.Children))
	}
	formula, err := mathMLToFormula(root.Children[0])
	if err != nil {
		return err
	}
	m.Formula = formula
	return nil
}

// ParseFormula parses an infix formula into an expression tree. Only the
// arithmetic subset described on Math is accepted.
func ParseFormula(formula string) (ast.Node, error) {
	if strings.TrimSpace(formula) == "" {
		return nil, fmt.Errorf("empty formula")
	}
	tree, err := parser.Parse(formula)
	if err != nil {
		return nil, fmt.Errorf("parsing formula %q: %w", formula, err)
	}
	if err := checkArithmetic(tree.Node); err != nil {
		return nil, fmt.Errorf("formula %q: %w", formula, err)
	}
	return tree.Node, nil
}

func checkArithmetic(n ast.Node) error {
	switch n := n.(type) {
	case *ast.BinaryNode:
		if _, ok := operatorElements[n.Operator]; !ok {
			return fmt.Errorf("unsupported operator %q", n.Operator)
		}
		if err := checkArithmetic(n.Left); err != nil {
			return err
		}
		return checkArithmetic(n.Right)
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			return fmt.Errorf("unsupported unary operator %q", n.Operator)
		}
		return checkArithmetic(n.Node)
	case *ast.IdentifierNode, *ast.IntegerNode, *ast.FloatNode:
		return nil
	default:
		return fmt.Errorf("unsupported expression %T", n)
	}
}

// FormulaToMathML renders an infix formula as a MathML math element.
func FormulaToMathML(formula string) (string, error) {
	data, err := xml.Marshal(Math{Formula: formula})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MathMLToFormula parses a MathML math element into an infix formula.
func MathMLToFormula(mathml string) (string, error) {
	var m Math
	if err := xml.Unmarshal([]byte(mathml), &m); err != nil {
		return "", err
	}
	return m.Formula, nil
}

func formulaNode(formula string) (mathNode, error) {
	n, err := ParseFormula(formula)
	if err != nil {
		return mathNode{}, err
	}
	return toMathML(n), nil
}

func element(name string, children ...mathNode) mathNode {
	return mathNode{XMLName: xml.Name{Local: name}, Children: children}
}

func toMathML(n ast.Node) mathNode {
	switch n := n.(type) {
	case *ast.BinaryNode:
		return element("apply", element(operatorElements[n.Operator]), toMathML(n.Left), toMathML(n.Right))
	case *ast.UnaryNode:
		if n.Operator == "+" {
			return toMathML(n.Node)
		}
		return element("apply", element("minus"), toMathML(n.Node))
	case *ast.IdentifierNode:
		return mathNode{XMLName: xml.Name{Local: "ci"}, Text: n.Value}
	case *ast.IntegerNode:
		return mathNode{
			XMLName: xml.Name{Local: "cn"},
			Attrs:   []xml.Attr{{Name: xml.Name{Local: "type"}, Value: "integer"}},
			Text:    strconv.Itoa(n.Value),
		}
	case *ast.FloatNode:
		return mathNode{XMLName: xml.Name{Local: "cn"}, Text: strconv.FormatFloat(n.Value, 'g', -1, 64)}
	default:
		panic(fmt.Sprintf("sbml: unchecked expression %T", n))
	}
}

// mathMLToFormula renders a MathML element as a fully parenthesised formula.
func mathMLToFormula(n mathNode) (string, error) {
	switch n.XMLName.Local {
	case "ci":
		id := strings.TrimSpace(n.Text)
		if id == "" {
			return "", fmt.Errorf("empty ci element")
		}
		return id, nil
	case "cn":
		text := strings.TrimSpace(n.Text)
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("invalid cn value %q", text)
		}
		if v < 0 {
			return "(" + text + ")", nil
		}
		return text, nil
	case "apply":
		if len(n.Children) < 2 {
			return "", fmt.Errorf("apply needs an operator and at least one argument")
		}
		op, ok := elementOperators[n.Children[0].XMLName.Local]
		if !ok {
			return "", fmt.Errorf("unsupported MathML operator %q", n.Children[0].XMLName.Local)
		}
		args := make([]string, 0, len(n.Children)-1)
		for _, c := range n.Children[1:] {
			s, err := mathMLToFormula(c)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
		switch {
		case op == "-" && len(args) == 1:
			return "(-" + args[0] + ")", nil
		case (op == "+" || op == "*") && len(args) >= 1:
			return "(" + strings.Join(args, " "+op+" ") + ")", nil
		case len(args) == 2:
			return "(" + args[0] + " " + op + " " + args[1] + ")", nil
		default:
			return "", fmt.Errorf("operator %s takes 2 arguments, got %d", n.Children[0].XMLName.Local, len(args))
		}
	default:
		return "", fmt.Errorf("unsupported MathML element %q", n.XMLName.Local)
	}
}
