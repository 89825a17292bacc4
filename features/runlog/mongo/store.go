// Package mongo persists run log entries in a MongoDB collection. Entries
// are appended by the driver and listed by inspection tooling in insertion
// order, paged by object id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/runlog"
	"github.com/loomworks/loom/runtime/workflow/status"
)

type (
	// Options configures the Mongo-backed run log store.
	Options struct {
		// Client is the connected MongoDB client. Required.
		Client *mongodriver.Client
		// Database names the target database. Required.
		Database string
		// Collection names the target collection. Defaults to
		// "workflow_run_events".
		Collection string
		// Timeout bounds individual operations. Defaults to 5s.
		Timeout time.Duration
	}

	// Store implements runlog.Store on a MongoDB collection.
	Store struct {
		mongo   *mongodriver.Client
		coll    collection
		timeout time.Duration
	}

	// Page is one page of listed entries. NextCursor is empty on the last
	// page.
	Page struct {
		Entries    []runlog.Entry
		NextCursor string
	}

	entryDocument struct {
		ID       bson.ObjectID `bson:"_id,omitempty"`
		RunID    string        `bson:"run_id"`
		NodeID   string        `bson:"node_id"`
		NodeKind string        `bson:"node_kind"`
		Status   string        `bson:"status"`
		At       time.Time     `bson:"at"`
	}
)

const (
	defaultCollection = "workflow_run_events"
	defaultTimeout    = 5 * time.Second
)

// New returns a Store backed by the provided MongoDB client. It creates the
// (run_id, _id) index used by List.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	wrapper := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newStoreWithCollection(opts.Client, wrapper, timeout), nil
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Append implements runlog.Store.
func (s *Store) Append(ctx context.Context, e runlog.Entry) error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.NodeID == "" {
		return errors.New("node id is required")
	}
	if e.Status == "" {
		return errors.New("status is required")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, entryDocument{
		RunID:    e.RunID,
		NodeID:   e.NodeID,
		NodeKind: string(e.NodeKind),
		Status:   string(e.Status),
		At:       at.UTC(),
	})
	return err
}

// List returns one page of a run's entries in insertion order. The cursor is
// the object id of the last entry of the previous page; empty starts from
// the beginning.
func (s *Store) List(ctx context.Context, runID, cursor string, limit int) (page Page, err error) {
	if runID == "" {
		return Page{}, errors.New("run id is required")
	}
	if limit <= 0 {
		return Page{}, errors.New("limit must be > 0")
	}

	filter := bson.M{"run_id": runID}
	if cursor != "" {
		oid, err := bson.ObjectIDFromHex(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		filter["_id"] = bson.M{"$gt": oid}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit+1)),
	)
	if err != nil {
		return Page{}, err
	}
	defer func() {
		if cerr := cur.Close(ctx); err == nil && cerr != nil {
			err = cerr
		}
	}()

	var (
		entries []runlog.Entry
		ids     []string
	)
	for cur.Next(ctx) {
		var doc entryDocument
		if err := cur.Decode(&doc); err != nil {
			return Page{}, err
		}
		entries = append(entries, runlog.Entry{
			RunID:    doc.RunID,
			NodeID:   doc.NodeID,
			NodeKind: graph.NodeKind(doc.NodeKind),
			Status:   status.Status(doc.Status),
			At:       doc.At,
		})
		ids = append(ids, doc.ID.Hex())
	}
	if err := cur.Err(); err != nil {
		return Page{}, err
	}

	var next string
	if len(entries) > limit {
		entries = entries[:limit]
		next = ids[limit-1]
	}
	return Page{Entries: entries, NextCursor: next}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "run_id", Value: 1},
			{Key: "_id", Value: 1},
		},
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func newStoreWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{mongo: mongoClient, coll: coll, timeout: timeout}
}

// collection narrows the driver surface so tests can substitute fakes.
type collection interface {
	InsertOne(ctx context.Context, document any) (*mongodriver.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel) (string, error)
}

type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, document any) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoCursor struct {
	cur *mongodriver.Cursor
}

func (c mongoCursor) Next(ctx context.Context) bool   { return c.cur.Next(ctx) }
func (c mongoCursor) Decode(val any) error            { return c.cur.Decode(val) }
func (c mongoCursor) Err() error                      { return c.cur.Err() }
func (c mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel) (string, error) {
	return v.view.CreateOne(ctx, model)
}
