package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chirino/chat-history/internal/config"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name:   "mongo",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

const collectionName = "chat_blobs"

func load(ctx context.Context) (registryblob.BlobStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("mongostore: missing config in context")
	}
	role := config.RoleFromContext(ctx)
	src := cfg.Source(role)
	if strings.TrimSpace(src.DBURL) == "" {
		return nil, fmt.Errorf("mongostore: %s db url is required", role)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(src.DBURL))
	if err != nil {
		return nil, fmt.Errorf("mongostore: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}
	dbName := src.Database
	if dbName == "" {
		dbName = "chat_history"
	}
	store, err := New(ctx, client.Database(dbName), role)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	store.client = client
	return store, nil
}

// MongoStore keeps one document per key in the chat_blobs collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	source string
}

type blobDoc struct {
	ID        string    `bson:"_id"`
	Source    string    `bson:"source"`
	Key       string    `bson:"key"`
	Dir       string    `bson:"dir"`
	Name      string    `bson:"name"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// New returns a store over db, creating the listing index if needed.
func New(ctx context.Context, db *mongo.Database, source string) (*MongoStore, error) {
	coll := db.Collection(collectionName)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "source", Value: 1}, {Key: "dir", Value: 1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongostore: create index: %w", err)
	}
	return &MongoStore{coll: coll, source: source}, nil
}

func (s *MongoStore) docID(key string) string {
	return s.source + ":" + strings.Trim(key, "/")
}

func (s *MongoStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": s.docID(key)})
	if err != nil {
		return false, fmt.Errorf("mongostore: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *MongoStore) Read(ctx context.Context, key string) ([]byte, error) {
	var doc blobDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": s.docID(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registryblob.NotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: read %s: %w", key, err)
	}
	return doc.Data, nil
}

func (s *MongoStore) Write(ctx context.Context, key string, data []byte) error {
	doc := s.doc(key, data)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: write %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, dir string) ([]string, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"source": s.source, "dir": strings.Trim(dir, "/")},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: list %s: %w", dir, err)
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: decode listing: %w", err)
		}
		names = append(names, doc.Name)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongostore: list %s: %w", dir, err)
	}
	return names, nil
}

func (s *MongoStore) CreateIfAbsent(ctx context.Context, key string) error {
	doc := s.doc(key, []byte{})
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$setOnInsert": bson.M{
			"source":     doc.Source,
			"key":        doc.Key,
			"dir":        doc.Dir,
			"name":       doc.Name,
			"data":       doc.Data,
			"updated_at": doc.UpdatedAt,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongostore: create %s: %w", key, err)
	}
	return nil
}

// Close disconnects the client when the store owns it.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) doc(key string, data []byte) blobDoc {
	key = strings.Trim(key, "/")
	dir, name := registryblob.Split(key)
	return blobDoc{
		ID:        s.docID(key),
		Source:    s.source,
		Key:       key,
		Dir:       dir,
		Name:      name,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
}

var _ registryblob.BlobStore = (*MongoStore)(nil)
