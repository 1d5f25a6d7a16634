package mapping

// BSONTypeAliases maps BSON type alias strings (as accepted by the
// $type query operator) to their numeric type codes. The aliases are
// the canonical ones from the BSON specification.
// Usage: BSONTypeAliases["array"] returns 4
var BSONTypeAliases = map[string]int32{
	"double":     1,
	"string":     2,
	"object":     3,
	"array":      4,
	"binData":    5,
	"undefined":  6,
	"objectId":   7,
	"bool":       8,
	"date":       9,
	"null":       10,
	"regex":      11,
	"javascript": 13,
	"int":        16,
	"timestamp":  17,
	"long":       18,
	"decimal":    19,
	"minKey":     -1,
	"maxKey":     127,
}

// IsBSONTypeAlias reports whether the alias is a valid $type operand.
func IsBSONTypeAlias(alias string) bool {
	_, ok := BSONTypeAliases[alias]
	return ok
}
