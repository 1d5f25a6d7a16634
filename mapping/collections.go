package mapping

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// NamingStrategy controls how a relational table name is mapped to a
// MongoDB collection name.
type NamingStrategy string

const (
	// NamingExact keeps the table name as written.
	NamingExact NamingStrategy = "exact"
	// NamingLower lowercases the table name.
	NamingLower NamingStrategy = "lower"
	// NamingPlural lowercases and pluralizes the table name, the
	// convention most ORMs use for entity-to-table mapping.
	NamingPlural NamingStrategy = "plural"
)

// CollectionName applies the naming strategy to a table name.
func CollectionName(table string, strategy NamingStrategy) string {
	switch strategy {
	case NamingLower:
		return strings.ToLower(table)
	case NamingPlural:
		return inflection.Plural(strings.ToLower(table))
	default:
		return table
	}
}
