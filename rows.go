package mongosql

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rows streams result documents as flat column rows. Column names come
// from the command's projection; without one they are discovered from
// the first result document, which is fetched eagerly so Columns is
// always answerable before Next.
type Rows struct {
	ctx        context.Context
	cursor     documentCursor
	columns    []string
	current    bson.D
	prefetched bool
	closed     bool
}

func newRows(ctx context.Context, cursor documentCursor, columns []string) (*Rows, error) {
	r := &Rows{ctx: ctx, cursor: cursor, columns: columns}
	if len(columns) == 0 {
		if err := r.discoverColumns(); err != nil {
			_ = cursor.Close(ctx)
			return nil, err
		}
	}
	return r, nil
}

func (r *Rows) discoverColumns() error {
	if !r.cursor.Next(r.ctx) {
		if err := r.cursor.Err(); err != nil {
			return wrapStoreError("cursor read", err)
		}
		return nil
	}
	if err := r.cursor.Decode(&r.current); err != nil {
		return wrapStoreError("document decode", err)
	}
	r.prefetched = true
	r.columns = make([]string, len(r.current))
	for i, e := range r.current {
		r.columns[i] = e.Key
	}
	return nil
}

// Columns reports the ordered result column names. An empty result with
// no projection has no columns.
func (r *Rows) Columns() []string { return r.columns }

// Next fills dest with the next row's values in column order. Missing
// fields yield nil. Returns io.EOF once the stream ends.
func (r *Rows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}
	if r.prefetched {
		r.prefetched = false
	} else {
		if !r.cursor.Next(r.ctx) {
			if err := r.cursor.Err(); err != nil {
				return wrapStoreError("cursor read", err)
			}
			return io.EOF
		}
		r.current = nil
		if err := r.cursor.Decode(&r.current); err != nil {
			return wrapStoreError("document decode", err)
		}
	}

	for i, col := range r.columns {
		val, err := driverValue(lookupKey(r.current, col))
		if err != nil {
			return err
		}
		dest[i] = val
	}
	return nil
}

// Close releases the underlying cursor. Closing twice is a no-op.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.cursor.Close(r.ctx)
}

// driverValue maps a decoded document value onto the flat value set of
// the row interface. Structured values are rendered as canonical
// extended JSON text so nothing is silently dropped.
func driverValue(v any) (driver.Value, error) {
	switch t := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil, nil
	case bool, int64, float64, string, []byte, time.Time:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case primitive.ObjectID:
		return t.Hex(), nil
	case primitive.DateTime:
		return t.Time(), nil
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC(), nil
	case primitive.Decimal128:
		return t.String(), nil
	case primitive.Binary:
		return t.Data, nil
	case bson.D, bson.A, bson.M:
		raw, err := bson.MarshalExtJSON(t, true, false)
		if err != nil {
			return nil, err
		}
		return raw, nil
	default:
		return t, nil
	}
}

// execResult is the driver-facing result of a write command. Document
// stores assign identities client-side, so there is no last-insert id.
type execResult struct {
	affected int64
}

func (r execResult) LastInsertId() (int64, error) {
	return 0, errors.New("last insert id is not available, identities are assigned in the document")
}

func (r execResult) RowsAffected() (int64, error) {
	return r.affected, nil
}
