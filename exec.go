package mongosql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// executor runs finished command documents against a store. Statements
// depend on this interface so tests can substitute the store.
type executor interface {
	Query(ctx context.Context, collection string, doc bson.D) (documentCursor, error)
	Write(ctx context.Context, collection string, doc bson.D) (int64, error)
	WriteBatch(ctx context.Context, collection string, docs []bson.D) ([]int64, error)
}

// documentCursor is the result stream of a query command.
type documentCursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// mongoExecutor executes command documents through the typed driver
// APIs of a database handle.
type mongoExecutor struct {
	db  *mongo.Database
	log *zap.Logger
}

func newExecutor(db *mongo.Database, log *zap.Logger) *mongoExecutor {
	return &mongoExecutor{db: db, log: log}
}

func (e *mongoExecutor) Query(ctx context.Context, collection string, doc bson.D) (documentCursor, error) {
	start := time.Now()
	coll := e.db.Collection(collection)

	var cursor *mongo.Cursor
	var err error
	switch doc[0].Key {
	case "aggregate":
		pipeline, _ := lookupKey(doc, "pipeline").(bson.A)
		cursor, err = coll.Aggregate(ctx, pipeline)
	case "find":
		filter := lookupKey(doc, "filter")
		if filter == nil {
			filter = bson.D{}
		}
		opts := options.Find()
		if sort := lookupKey(doc, "sort"); sort != nil {
			opts.SetSort(sort)
		}
		if projection := lookupKey(doc, "projection"); projection != nil {
			opts.SetProjection(projection)
		}
		if limit, ok := asInt64(lookupKey(doc, "limit")); ok {
			opts.SetLimit(limit)
		}
		if skip, ok := asInt64(lookupKey(doc, "skip")); ok {
			opts.SetSkip(skip)
		}
		cursor, err = coll.Find(ctx, filter, opts)
	default:
		return nil, fmt.Errorf("command '%s' is not a query", doc[0].Key)
	}
	if err != nil {
		return nil, wrapStoreError(doc[0].Key, err)
	}

	e.log.Debug("query executed",
		zap.String("command", doc[0].Key),
		zap.String("collection", collection),
		zap.Duration("elapsed", time.Since(start)))
	return cursor, nil
}

func (e *mongoExecutor) Write(ctx context.Context, collection string, doc bson.D) (int64, error) {
	start := time.Now()
	name := doc[0].Key
	if name == "noop" {
		return 0, nil
	}
	coll := e.db.Collection(collection)

	var affected int64
	var err error
	switch name {
	case "insert":
		affected, err = e.runInsert(ctx, coll, doc)
	case "update":
		affected, err = e.runUpdate(ctx, coll, doc)
	case "delete":
		affected, err = e.runDelete(ctx, coll, doc)
	default:
		return 0, fmt.Errorf("command '%s' is not a write", name)
	}
	if err != nil {
		return 0, wrapStoreError(name, err)
	}

	e.log.Debug("write executed",
		zap.String("command", name),
		zap.String("collection", collection),
		zap.Int64("affected", affected),
		zap.Duration("elapsed", time.Since(start)))
	return affected, nil
}

func (e *mongoExecutor) runInsert(ctx context.Context, coll *mongo.Collection, doc bson.D) (int64, error) {
	documents, _ := lookupKey(doc, "documents").(bson.A)
	if len(documents) == 0 {
		return 0, nil
	}
	res, err := coll.InsertMany(ctx, []any(documents))
	if err != nil {
		return 0, err
	}
	return int64(len(res.InsertedIDs)), nil
}

func (e *mongoExecutor) runUpdate(ctx context.Context, coll *mongo.Collection, doc bson.D) (int64, error) {
	updates, _ := lookupKey(doc, "updates").(bson.A)
	var affected int64
	for _, raw := range updates {
		op, ok := raw.(bson.D)
		if !ok {
			return 0, fmt.Errorf("malformed update operation %v", raw)
		}
		filter := lookupKey(op, "q")
		body := lookupKey(op, "u")
		multi, _ := lookupKey(op, "multi").(bool)

		var res *mongo.UpdateResult
		var err error
		if multi {
			res, err = coll.UpdateMany(ctx, filter, body)
		} else {
			res, err = coll.UpdateOne(ctx, filter, body)
		}
		if err != nil {
			return 0, err
		}
		affected += res.ModifiedCount
	}
	return affected, nil
}

func (e *mongoExecutor) runDelete(ctx context.Context, coll *mongo.Collection, doc bson.D) (int64, error) {
	deletes, _ := lookupKey(doc, "deletes").(bson.A)
	var affected int64
	for _, raw := range deletes {
		op, ok := raw.(bson.D)
		if !ok {
			return 0, fmt.Errorf("malformed delete operation %v", raw)
		}
		filter := lookupKey(op, "q")
		limit, _ := asInt64(lookupKey(op, "limit"))

		var res *mongo.DeleteResult
		var err error
		if limit == 1 {
			res, err = coll.DeleteOne(ctx, filter)
		} else {
			res, err = coll.DeleteMany(ctx, filter)
		}
		if err != nil {
			return 0, err
		}
		affected += res.DeletedCount
	}
	return affected, nil
}

// WriteBatch flattens the batch entries into one ordered bulk
// operation. Entries abort at the first failure, matching ordered
// batch semantics.
func (e *mongoExecutor) WriteBatch(ctx context.Context, collection string, docs []bson.D) ([]int64, error) {
	start := time.Now()
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		entry, err := batchModels(doc)
		if err != nil {
			return nil, err
		}
		models = append(models, entry...)
	}

	counts := make([]int64, len(docs))
	for i := range counts {
		counts[i] = AffectedUnknown
	}
	if len(models) == 0 {
		return counts, nil
	}

	coll := e.db.Collection(collection)
	if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return nil, wrapStoreError("bulk write", err)
	}

	e.log.Debug("batch executed",
		zap.String("collection", collection),
		zap.Int("entries", len(docs)),
		zap.Duration("elapsed", time.Since(start)))
	return counts, nil
}

// batchModels converts one batched command document into bulk write
// models.
func batchModels(doc bson.D) ([]mongo.WriteModel, error) {
	switch doc[0].Key {
	case "noop":
		return nil, nil
	case "insert":
		documents, _ := lookupKey(doc, "documents").(bson.A)
		models := make([]mongo.WriteModel, len(documents))
		for i, d := range documents {
			models[i] = mongo.NewInsertOneModel().SetDocument(d)
		}
		return models, nil
	case "update":
		updates, _ := lookupKey(doc, "updates").(bson.A)
		models := make([]mongo.WriteModel, 0, len(updates))
		for _, raw := range updates {
			op, ok := raw.(bson.D)
			if !ok {
				return nil, fmt.Errorf("malformed update operation %v", raw)
			}
			filter := lookupKey(op, "q")
			body := lookupKey(op, "u")
			if multi, _ := lookupKey(op, "multi").(bool); multi {
				models = append(models, mongo.NewUpdateManyModel().SetFilter(filter).SetUpdate(body))
			} else {
				models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(body))
			}
		}
		return models, nil
	case "delete":
		deletes, _ := lookupKey(doc, "deletes").(bson.A)
		models := make([]mongo.WriteModel, 0, len(deletes))
		for _, raw := range deletes {
			op, ok := raw.(bson.D)
			if !ok {
				return nil, fmt.Errorf("malformed delete operation %v", raw)
			}
			filter := lookupKey(op, "q")
			if limit, _ := asInt64(lookupKey(op, "limit")); limit == 1 {
				models = append(models, mongo.NewDeleteOneModel().SetFilter(filter))
			} else {
				models = append(models, mongo.NewDeleteManyModel().SetFilter(filter))
			}
		}
		return models, nil
	default:
		return nil, fmt.Errorf("command '%s' cannot be batched", doc[0].Key)
	}
}

// wrapStoreError classifies a driver failure into the timeout or
// generic execution category.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTimeoutErr(err) {
		return &TimeoutError{Op: op, Err: err}
	}
	return &ExecutionError{Op: op, Err: err}
}

func isTimeoutErr(err error) bool {
	if mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
