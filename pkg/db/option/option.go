package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type queryOptionFunc func(stmt *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

// ApplyAll runs every option in order.
func ApplyAll(stmt *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		stmt = opt.Apply(stmt)
	}
	return stmt
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
	// Default is used when SortBy is empty or not allowed.
	Default string
}

// WithQuerySortBy builds a sort definition from request parameters.
func WithQuerySortBy(sortBy, orderBy string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{SortBy: sortBy, OrderBy: orderBy, Allow: allow}
}

// WithSortBy orders by a whitelisted column. Unknown columns fall back to
// Default, then created_at.
func WithSortBy(q QuerySortBy) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		column := strings.ToLower(strings.TrimSpace(q.SortBy))
		if !q.Allow[column] {
			column = q.Default
		}
		if column == "" {
			column = "created_at"
		}
		direction := "DESC"
		if strings.EqualFold(strings.TrimSpace(q.OrderBy), "asc") {
			direction = "ASC"
		}
		return stmt.Order(fmt.Sprintf("%s %s", column, direction)).Order("id " + direction)
	})
}

type Operator string

const (
	EQ   Operator = "="
	GTE  Operator = ">="
	LTE  Operator = "<="
	LIKE Operator = "LIKE"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a WHERE clause. LIKE matches case-insensitively on
// every dialect.
func ApplyOperator(c Condition) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		switch c.Operator {
		case LIKE:
			value := strings.ToLower(fmt.Sprint(c.Value))
			return stmt.Where(fmt.Sprintf("LOWER(%s) LIKE ?", c.Field), "%"+value+"%")
		case GTE, LTE, EQ:
			return stmt.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
		default:
			return stmt
		}
	})
}

// ApplyOffset limits a statement to a single page.
func ApplyOffset(limit, offset int) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if limit > 0 {
			stmt = stmt.Limit(limit)
		}
		if offset > 0 {
			stmt = stmt.Offset(offset)
		}
		return stmt
	})
}
