// Package checks supplies the default SQL check functions wired into the
// validation gate. The gate itself only sees their pass/fail contract.
package checks

import (
	"context"
	"sort"
	"strings"

	"sqlboost/internal/gate"
	"sqlboost/internal/work"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver"
)

// Structural returns the cheap local check: the candidate must parse as a
// single read-only statement and reference only known tables. Failures
// here are compiler-class and eligible for error-feedback retry upstream.
func Structural(knownTables []string) gate.CheckFunc {
	known := make(map[string]struct{}, len(knownTables))
	for _, name := range knownTables {
		known[strings.ToLower(name)] = struct{}{}
	}
	return func(ctx context.Context, original, candidate work.Work) error {
		stmt, err := parseOne(candidate.Serialize())
		if err != nil {
			return gate.Mismatchf("parse: %v", err)
		}
		switch stmt.(type) {
		case *ast.SelectStmt, *ast.SetOprStmt:
		default:
			return gate.Mismatchf("not a read-only query")
		}
		if len(known) == 0 {
			return nil
		}
		refs := collectTables(stmt)
		for _, name := range refs {
			if _, ok := known[strings.ToLower(name)]; !ok {
				return gate.Mismatchf("unknown table %s", name)
			}
		}
		return nil
	}
}

// ReferencedTables parses sql and returns the sorted set of table names it
// references, excluding CTE names.
func ReferencedTables(sql string) ([]string, error) {
	stmt, err := parseOne(sql)
	if err != nil {
		return nil, err
	}
	return collectTables(stmt), nil
}

func parseOne(sql string) (ast.StmtNode, error) {
	p := parser.New()
	stmt, err := p.ParseOneStmt(sql, "", "")
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

type tableCollector struct {
	names map[string]struct{}
	ctes  map[string]struct{}
}

func (c *tableCollector) Enter(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.WithClause:
		for _, cte := range node.CTEs {
			if cte != nil {
				c.ctes[strings.ToLower(cte.Name.O)] = struct{}{}
			}
		}
	case *ast.TableName:
		c.names[strings.ToLower(node.Name.O)] = struct{}{}
	}
	return n, false
}

func (c *tableCollector) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}

func collectTables(stmt ast.StmtNode) []string {
	c := &tableCollector{
		names: make(map[string]struct{}),
		ctes:  make(map[string]struct{}),
	}
	stmt.Accept(c)
	out := make([]string, 0, len(c.names))
	for name := range c.names {
		if _, isCTE := c.ctes[name]; isCTE {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
