package database

import (
	"fmt"
	"strings"
)

// queryBuilder builds parameterized WHERE clauses for dynamic queries.
type queryBuilder struct {
	where  []string
	args   []any
	argIdx int
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{argIdx: 1}
}

// Add appends a WHERE condition. Every %s in the clause is replaced with the same $N.
func (qb *queryBuilder) Add(clause string, val any) {
	parameterized := strings.ReplaceAll(clause, "%s", fmt.Sprintf("$%d", qb.argIdx))
	qb.where = append(qb.where, parameterized)
	qb.args = append(qb.args, val)
	qb.argIdx++
}

// WhereClause returns the full WHERE clause (including "WHERE") or empty string if no conditions.
func (qb *queryBuilder) WhereClause() string {
	if len(qb.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.where, " AND ")
}

// Args returns all accumulated arguments.
func (qb *queryBuilder) Args() []any {
	return qb.args
}
