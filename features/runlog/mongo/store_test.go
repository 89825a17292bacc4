package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/runlog"
	"github.com/loomworks/loom/runtime/workflow/status"
)

type fakeCollection struct {
	inserted []entryDocument
	docs     []entryDocument
	findErr  error
}

func (c *fakeCollection) InsertOne(_ context.Context, document any) (*mongodriver.InsertOneResult, error) {
	doc, ok := document.(entryDocument)
	if !ok {
		return nil, errors.New("unexpected document type")
	}
	doc.ID = bson.NewObjectID()
	c.inserted = append(c.inserted, doc)
	return &mongodriver.InsertOneResult{InsertedID: doc.ID}, nil
}

func (c *fakeCollection) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (cursor, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	f, ok := filter.(bson.M)
	if !ok {
		return nil, errors.New("unexpected filter type")
	}
	runID, _ := f["run_id"].(string)
	var after bson.ObjectID
	if idFilter, ok := f["_id"].(bson.M); ok {
		after = idFilter["$gt"].(bson.ObjectID)
	}
	var out []entryDocument
	for _, d := range c.docs {
		if d.RunID != runID {
			continue
		}
		if !after.IsZero() && d.ID.Hex() <= after.Hex() {
			continue
		}
		out = append(out, d)
	}
	return &fakeCursor{docs: out}, nil
}

func (c *fakeCollection) Indexes() indexView { return fakeIndexes{} }

type fakeIndexes struct{}

func (fakeIndexes) CreateOne(context.Context, mongodriver.IndexModel) (string, error) {
	return "run_id_1__id_1", nil
}

type fakeCursor struct {
	docs []entryDocument
	pos  int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	doc, ok := val.(*entryDocument)
	if !ok {
		return errors.New("unexpected decode target")
	}
	*doc = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error                  { return nil }
func (c *fakeCursor) Close(context.Context) error { return nil }

func newTestStore(coll *fakeCollection) *Store {
	return newStoreWithCollection(nil, coll, time.Second)
}

func TestAppendValidatesAndInserts(t *testing.T) {
	coll := &fakeCollection{}
	s := newTestStore(coll)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := s.Append(context.Background(), runlog.Entry{
		RunID:    "run-1",
		NodeID:   "n1",
		NodeKind: graph.KindHTTPRequest,
		Status:   status.StatusLoading,
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, coll.inserted, 1)
	require.Equal(t, "run-1", coll.inserted[0].RunID)
	require.Equal(t, "HTTP_REQUEST", coll.inserted[0].NodeKind)
	require.Equal(t, "loading", coll.inserted[0].Status)
	require.Equal(t, at, coll.inserted[0].At)

	require.Error(t, s.Append(context.Background(), runlog.Entry{NodeID: "n1", Status: status.StatusLoading}))
	require.Error(t, s.Append(context.Background(), runlog.Entry{RunID: "r", Status: status.StatusLoading}))
	require.Error(t, s.Append(context.Background(), runlog.Entry{RunID: "r", NodeID: "n1"}))
}

func TestListPagesInInsertionOrder(t *testing.T) {
	coll := &fakeCollection{}
	for i := 0; i < 5; i++ {
		coll.docs = append(coll.docs, entryDocument{
			ID:     bson.NewObjectID(),
			RunID:  "run-1",
			NodeID: "n1",
			Status: "loading",
			At:     time.Now().UTC(),
		})
	}
	coll.docs = append(coll.docs, entryDocument{
		ID:     bson.NewObjectID(),
		RunID:  "run-2",
		NodeID: "x",
		Status: "success",
	})
	s := newTestStore(coll)

	page, err := s.List(context.Background(), "run-1", "", 3)
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)
	require.NotEmpty(t, page.NextCursor)

	page2, err := s.List(context.Background(), "run-1", page.NextCursor, 3)
	require.NoError(t, err)
	require.Len(t, page2.Entries, 2)
	require.Empty(t, page2.NextCursor)
}

func TestListValidatesArguments(t *testing.T) {
	s := newTestStore(&fakeCollection{})
	_, err := s.List(context.Background(), "", "", 10)
	require.Error(t, err)
	_, err = s.List(context.Background(), "run-1", "", 0)
	require.Error(t, err)
	_, err = s.List(context.Background(), "run-1", "not-an-oid", 10)
	require.ErrorContains(t, err, "invalid cursor")
}
