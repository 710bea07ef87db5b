package script

import (
	"log/slog"

	"github.com/expr-lang/expr/ast"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
)

// hyphenPatcher reconstructs hyphenated names from the subtraction chains
// expr-lang parses them into.
//
// Definition names and config keys may contain hyphens ("format-title",
// config.site-name). When the joined name is known, "a - b" becomes the
// identifier "a-b", "a - b(x)" becomes the call "a-b(x)", and
// "config.site - name" becomes the member access config["site-name"].
type hyphenPatcher struct {
	names  map[string]bool // top-level names visible to the expression
	config lang.Value      // bound to the "config" identifier
	logger log.Logger
}

// Visit implements ast.Visitor.
func (p *hyphenPatcher) Visit(node *ast.Node) {
	bin, ok := (*node).(*ast.BinaryNode)
	if !ok || bin.Operator != "-" {
		return
	}

	right, call, ok := splitRight(bin.Right)
	if !ok {
		return
	}

	switch left := bin.Left.(type) {
	case *ast.MemberNode:
		if call == nil {
			p.patchMember(node, left, right)
		}

	case *ast.BinaryNode:
		if left.Operator == "-" {
			p.patchChain(node, left, right, call)
		}

	case *ast.IdentifierNode:
		p.patchTopLevel(node, left.Value+"-"+right.Value, call)
	}
}

// splitRight accepts the segment after a hyphen: an identifier, or a call of
// one.
func splitRight(n ast.Node) (*ast.IdentifierNode, *ast.CallNode, bool) {
	switch n := n.(type) {
	case *ast.IdentifierNode:
		return n, nil, true

	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			return id, n, true
		}
	}

	return nil, nil, false
}

// patchMember rewrites MemberNode(base, "prop") - IdentifierNode("name") to
// MemberNode(base, "prop-name") when base resolves into config.
func (p *hyphenPatcher) patchMember(
	node *ast.Node,
	left *ast.MemberNode,
	right *ast.IdentifierNode,
) {
	prop, ok := left.Property.(*ast.StringNode)
	if !ok {
		return
	}

	combined := prop.Value + "-" + right.Value

	base, ok := extractMemberPath(left.Node)
	if !ok || !p.hasChild(base, combined) {
		return
	}

	ast.Patch(node, &ast.MemberNode{
		Node:     left.Node,
		Property: &ast.StringNode{Value: combined},
	})

	p.logger.Trace("patch hyphenated",
		slog.String("combined_name", combined),
		slog.String("patch_type", "member"))
}

// patchChain handles nested chains whose inner links were not patched
// because only the full name exists.
func (p *hyphenPatcher) patchChain(
	node *ast.Node,
	left *ast.BinaryNode,
	right *ast.IdentifierNode,
	call *ast.CallNode,
) {
	base, property, ok := extractHyphenChain(left)
	if !ok {
		return
	}

	combined := property + "-" + right.Value

	if base == nil {
		p.patchTopLevel(node, combined, call)

		return
	}

	path, ok := extractMemberPath(base)
	if !ok || call != nil || !p.hasChild(path, combined) {
		return
	}

	ast.Patch(node, &ast.MemberNode{
		Node:     base,
		Property: &ast.StringNode{Value: combined},
	})

	p.logger.Trace("patch hyphenated",
		slog.String("combined_name", combined),
		slog.String("patch_type", "chain"))
}

// patchTopLevel rewrites the node to the identifier combined, or to a call of
// it, when combined is a known name.
func (p *hyphenPatcher) patchTopLevel(node *ast.Node, combined string, call *ast.CallNode) {
	if !p.names[combined] {
		return
	}

	kind := "identifier"
	if call != nil {
		kind = "call"
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: combined},
			Arguments: call.Arguments,
		})
	} else {
		ast.Patch(node, &ast.IdentifierNode{Value: combined})
	}

	p.logger.Trace("patch hyphenated",
		slog.String("combined_name", combined),
		slog.String("patch_type", kind))
}

// extractHyphenChain walks an unpatched BinaryNode("-") chain and returns the
// base node (nil for a top-level chain) and the accumulated hyphenated name.
func extractHyphenChain(bin *ast.BinaryNode) (ast.Node, string, bool) {
	if bin.Operator != "-" {
		return nil, "", false
	}

	right, ok := bin.Right.(*ast.IdentifierNode)
	if !ok {
		return nil, "", false
	}

	switch left := bin.Left.(type) {
	case *ast.MemberNode:
		prop, ok := left.Property.(*ast.StringNode)
		if !ok {
			return nil, "", false
		}

		return left.Node, prop.Value + "-" + right.Value, true

	case *ast.BinaryNode:
		base, inner, ok := extractHyphenChain(left)
		if !ok {
			return nil, "", false
		}

		return base, inner + "-" + right.Value, true

	case *ast.IdentifierNode:
		return nil, left.Value + "-" + right.Value, true
	}

	return nil, "", false
}

// extractMemberPath walks a MemberNode chain to produce path segments.
func extractMemberPath(node ast.Node) ([]string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return []string{n.Value}, true

	case *ast.MemberNode:
		prop, ok := n.Property.(*ast.StringNode)
		if !ok {
			return nil, false
		}

		base, ok := extractMemberPath(n.Node)
		if !ok {
			return nil, false
		}

		return append(base, prop.Value), true
	}

	return nil, false
}

// hasChild reports whether the object at path (rooted at "config") has the
// key name.
func (p *hyphenPatcher) hasChild(path []string, name string) bool {
	if len(path) == 0 || path[0] != configName {
		return false
	}

	v := p.config
	for _, seg := range path[1:] {
		var ok bool
		if v, ok = v.Get(seg); !ok {
			return false
		}
	}

	_, ok := v.Get(name)

	return ok
}
