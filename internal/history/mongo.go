package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/almaharvest/internal/harvest"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Defaults used when the configuration leaves them empty
const (
	DefaultDatabase   = "almaharvest"
	DefaultCollection = "harvest_history"
)

// Entry is the document stored for every processed item
type Entry struct {
	RunID      string    `bson:"run_id"`
	Barcode    string    `bson:"barcode"`
	SourceFile string    `bson:"source_file"`
	Outcome    string    `bson:"outcome"`
	Reason     string    `bson:"reason,omitempty"`
	Year       string    `bson:"year,omitempty"`
	Error      string    `bson:"error,omitempty"`
	FinishedAt time.Time `bson:"finished_at"`
}

// NewEntry converts a harvest result into a history document
func NewEntry(res harvest.Result) Entry {
	e := Entry{
		RunID:      res.RunID,
		Barcode:    res.Barcode,
		SourceFile: res.SourceFile,
		Outcome:    string(res.Outcome),
		Reason:     string(res.Reason),
		Year:       res.Year,
		FinishedAt: res.FinishedAt.UTC(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

// Mongo stores item outcomes in a MongoDB collection
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongo connects to MongoDB and prepares the history collection
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo URI is required")
	}
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m := &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
		timeout:    10 * time.Second,
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "barcode", Value: 1}, {Key: "finished_at", Value: -1}},
	}
	if _, err := m.collection.Indexes().CreateOne(connectCtx, indexModel); err != nil {
		slog.Warn("Failed to create history index", "collection", collection, "err", err)
	}

	slog.Info("Connected to harvest history", "database", database, "collection", collection)
	return m, nil
}

// OnResult stores the outcome of one item
func (m *Mongo) OnResult(ctx context.Context, res harvest.Result) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, NewEntry(res)); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// LastOutcome returns the most recent entry for a barcode
func (m *Mongo) LastOutcome(ctx context.Context, barcode string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "finished_at", Value: -1}})
	var entry Entry
	err := m.collection.FindOne(ctx, bson.M{"barcode": barcode}, opts).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find history entry: %w", err)
	}
	return &entry, nil
}

// Close disconnects from MongoDB
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
