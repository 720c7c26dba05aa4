package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/solprobe/internal/cache"
	"github.com/example/solprobe/internal/scenario"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const runsCollection = "runs"

// MongoRunStore keeps reports in the runs collection, keyed by run_id.
// Recently saved or read reports are served from memory for one TTL.
type MongoRunStore struct {
	coll *mongo.Collection
	runs *cache.Cache[scenario.Report]
}

// NewMongoRunStore sets up the collection and unique index on run_id.
func NewMongoRunStore(ctx context.Context, client *mongo.Client, dbName string, ttl time.Duration) (*MongoRunStore, error) {
	coll := client.Database(dbName).Collection(runsCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "started_at", Value: -1}}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoRunStore{coll: coll, runs: cache.New[scenario.Report](ttl)}, nil
}

// Connect opens a client and verifies it answers a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

// Save inserts or replaces the report with the same run id.
func (s *MongoRunStore) Save(ctx context.Context, r scenario.Report) error {
	if r.RunID == "" {
		return errors.New("missing run id")
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "run_id", Value: r.RunID}},
		r,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	s.runs.Set(r.RunID, r)
	return nil
}

func (s *MongoRunStore) Get(ctx context.Context, runID string) (scenario.Report, error) {
	r, _, err := s.runs.GetOrFetch(ctx, runID, func(ctx context.Context) (scenario.Report, error) {
		var r scenario.Report
		err := s.coll.FindOne(ctx, bson.D{{Key: "run_id", Value: runID}}).Decode(&r)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return scenario.Report{}, ErrRunNotFound
		}
		return r, err
	})
	return r, err
}

func (s *MongoRunStore) List(ctx context.Context, limit int) ([]scenario.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	cur, err := s.coll.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	out := []scenario.Report{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoRunStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
