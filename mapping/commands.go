package mapping

// CommandKind classifies a top-level command document by the behavior
// of its result: query kinds return a cursor, write kinds return an
// affected-document count.
type CommandKind int

const (
	KindUnknown CommandKind = iota
	KindQuery
	KindWrite
)

// CommandKinds maps the first key of a command document to its kind.
// The first key is what names the command on the MongoDB wire protocol,
// so classification never needs to look deeper into the document.
var CommandKinds = map[string]CommandKind{
	"aggregate": KindQuery,
	"find":      KindQuery,
	"insert":    KindWrite,
	"update":    KindWrite,
	"delete":    KindWrite,

	// Internal marker for ignorable schema statements; executes as a
	// zero-effect write.
	"noop": KindWrite,
}

// KnownCommands lists the supported command words, used for
// did-you-mean suggestions on unknown top-level keys.
var KnownCommands = []string{"aggregate", "find", "insert", "update", "delete"}

// IsWriteCommand reports whether name begins a batchable write command.
func IsWriteCommand(name string) bool {
	return CommandKinds[name] == KindWrite
}
