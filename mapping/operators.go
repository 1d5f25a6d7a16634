package mapping

// OperatorMap translates SQL comparison operators to their MongoDB
// query-operator equivalents.
// Usage: OperatorMap["="] returns "$eq"
var OperatorMap = map[string]string{
	"=":  "$eq",
	"!=": "$ne",
	"<>": "$ne",
	">":  "$gt",
	">=": "$gte",
	"<":  "$lt",
	"<=": "$lte",

	"in":     "$in",
	"not in": "$nin",

	// LIKE requires the pattern to be rewritten into a regular
	// expression; the translator handles that separately.
	"like": "$regex",
}

// NegatedOperator returns the MongoDB operator expressing the negation
// of the given MongoDB operator. Used when a NOT wraps a plain
// comparison and the tree can be collapsed instead of nested.
var NegatedOperator = map[string]string{
	"$eq":  "$ne",
	"$ne":  "$eq",
	"$gt":  "$lte",
	"$gte": "$lt",
	"$lt":  "$gte",
	"$lte": "$gt",
	"$in":  "$nin",
	"$nin": "$in",
}

// NullRestrictedOperators are the comparison operators that are
// currently rejected when compared against a null value. Equality
// against null is translated; the rest are a known gap.
//
// TODO: translate null comparisons through $exists/$type guards and
// retire this table.
var NullRestrictedOperators = map[string]bool{
	"$ne":  true,
	"$gt":  true,
	"$gte": true,
	"$lt":  true,
	"$lte": true,
	"$in":  true,
	"$nin": true,
}

// LogicalOperators maps SQL boolean connectives to MongoDB logical
// query operators.
var LogicalOperators = map[string]string{
	"AND": "$and",
	"OR":  "$or",
	"NOR": "$nor",
}
