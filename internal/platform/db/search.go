package db

import (
	"fmt"
	"strings"
)

// SearchParamType defines how a query-string parameter maps onto SQL.
type SearchParamType int

const (
	SearchParamToken     SearchParamType = iota // exact match on a code-like column
	SearchParamDate                             // supports prefixes (gt, lt, ge, le, eq)
	SearchParamString                           // case-insensitive prefix match
	SearchParamReference                        // uuid foreign key
	SearchParamNumber                           // numeric with prefix support
)

// SearchParamConfig maps one search parameter to its database column.
type SearchParamConfig struct {
	Type   SearchParamType
	Column string
}

// SearchQuery builds SQL WHERE clauses from request search parameters.
// It encapsulates the common search pattern used across domain repositories.
type SearchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// NewSearchQuery creates a new SearchQuery for the given table and columns.
func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Add appends a raw WHERE clause fragment (without leading "AND").
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// ApplyParam applies a single search parameter using the config.
func (q *SearchQuery) ApplyParam(config SearchParamConfig, value string) {
	switch config.Type {
	case SearchParamDate, SearchParamNumber:
		op, v := splitPrefix(value)
		q.where += fmt.Sprintf(" AND %s %s $%d", config.Column, op, q.idx)
		q.args = append(q.args, v)
		q.idx++
	case SearchParamString:
		q.where += fmt.Sprintf(" AND %s ILIKE $%d", config.Column, q.idx)
		q.args = append(q.args, value+"%")
		q.idx++
	default: // token, reference
		q.where += fmt.Sprintf(" AND %s = $%d", config.Column, q.idx)
		q.args = append(q.args, value)
		q.idx++
	}
}

// ApplyParams applies all matching search parameters from the given map;
// parameters without a config entry are ignored.
func (q *SearchQuery) ApplyParams(params map[string]string, configs map[string]SearchParamConfig) {
	for name, value := range params {
		if config, ok := configs[name]; ok {
			q.ApplyParam(config, value)
		}
	}
}

// splitPrefix peels a comparison prefix (ge, le, gt, lt, eq) off a date or
// number value and returns the SQL operator plus the bare value.
func splitPrefix(value string) (string, string) {
	prefixes := map[string]string{"ge": ">=", "le": "<=", "gt": ">", "lt": "<", "eq": "="}
	if len(value) > 2 {
		if op, ok := prefixes[value[:2]]; ok {
			return op, value[2:]
		}
	}
	return "=", value
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *SearchQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// CountSQL returns the count query SQL.
func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *SearchQuery) DataSQL(limit, offset int) string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the arguments for the data query (search args + limit + offset).
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}

// ApplySort processes a sort parameter and sets ORDER BY using config column
// mappings. The value is a comma-separated list of param names, optionally
// prefixed with - for DESC. Falls back to defaultOrder when empty.
func (q *SearchQuery) ApplySort(sortParam, defaultOrder string, configs map[string]SearchParamConfig) {
	if sortParam == "" {
		q.orderBy = defaultOrder
		return
	}
	var parts []string
	for _, field := range strings.Split(sortParam, ",") {
		field = strings.TrimSpace(field)
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		if config, ok := configs[field]; ok {
			if desc {
				parts = append(parts, config.Column+" DESC")
			} else {
				parts = append(parts, config.Column+" ASC")
			}
		}
	}
	if len(parts) > 0 {
		q.orderBy = strings.Join(parts, ", ")
	} else {
		q.orderBy = defaultOrder
	}
}
