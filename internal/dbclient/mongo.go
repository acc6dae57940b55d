package dbclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"snippets/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const snippetCollection = "snippets"

// MongoOptions locates a MongoDB deployment. Host may be a full
// mongodb:// or mongodb+srv:// connection string.
type MongoOptions struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Extra is appended as query parameters (authSource, replicaSet, ...).
	Extra map[string]string
}

// BuildMongoURI returns the connection URI and the database name to use.
func BuildMongoURI(opts MongoOptions) (uri, dbName string) {
	if strings.HasPrefix(opts.Host, "mongodb+srv://") || strings.HasPrefix(opts.Host, "mongodb://") {
		uri = opts.Host
		// Atlas connection strings carry a <password> placeholder.
		if opts.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", opts.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", opts.Password)
		}
		if opts.Database != "" && !strings.Contains(uri, "/"+opts.Database) {
			if idx := strings.Index(uri, "?"); idx != -1 {
				uri = strings.TrimRight(uri[:idx], "/") + "/" + opts.Database + uri[idx:]
			} else {
				uri = strings.TrimRight(uri, "/") + "/" + opts.Database
			}
		}
	} else {
		port := opts.Port
		if port == 0 {
			port = 27017
		}
		if opts.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", opts.Username, opts.Password, opts.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", opts.Host, port)
		}
		if len(opts.Extra) > 0 {
			keys := make([]string, 0, len(opts.Extra))
			for k := range opts.Extra {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			params := make([]string, 0, len(keys))
			for _, k := range keys {
				params = append(params, k+"="+opts.Extra[k])
			}
			uri += "?" + strings.Join(params, "&")
		}
	}

	dbName = opts.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	if dbName == "" {
		dbName = "snippets"
	}
	return uri, dbName
}

// databaseFromURI extracts the path segment of user:pass@host/DB?params.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.Index(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return ""
	}
	path := rest[slash+1:]
	if q := strings.Index(path, "?"); q != -1 {
		path = path[:q]
	}
	return path
}

// maskPassword hides the password in a URI before it is logged.
func maskPassword(uri, password string) string {
	if password == "" {
		return uri
	}
	return strings.ReplaceAll(uri, password, "***")
}

// MongoSnippetStore implements domain.SnippetStore on a MongoDB
// collection. Documents are stored as nested BSON so they stay queryable.
type MongoSnippetStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewMongoSnippetStore connects to MongoDB. The driver connects lazily;
// call Ping to verify reachability.
func NewMongoSnippetStore(opts MongoOptions, logger *slog.Logger) (*MongoSnippetStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	uri, dbName := BuildMongoURI(opts)
	logger.Info("mongo: connecting", "uri", maskPassword(uri, opts.Password), "database", dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &MongoSnippetStore{
		client: client,
		coll:   client.Database(dbName).Collection(snippetCollection),
		logger: logger,
	}, nil
}

// snippetDoc is the stored shape of a snippet.
type snippetDoc struct {
	ID        string    `bson:"_id"`
	ProjectID string    `bson:"project_id"`
	FolderID  string    `bson:"folder_id"`
	Name      string    `bson:"name"`
	Data      bson.Raw  `bson:"data"`
	CreatedBy string    `bson:"created_by"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// encodeDocument converts a document to BSON through its JSON form, so
// the element union keeps its flat "type"-tagged layout.
func encodeDocument(doc domain.Document) (bson.Raw, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &d); err != nil {
		return nil, fmt.Errorf("convert document to bson: %w", err)
	}
	out, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal bson: %w", err)
	}
	return bson.Raw(out), nil
}

func decodeDocument(raw bson.Raw) (domain.Document, error) {
	var doc domain.Document
	js, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return doc, fmt.Errorf("convert bson to json: %w", err)
	}
	if err := json.Unmarshal(js, &doc); err != nil {
		return doc, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func toSnippetDoc(sn *domain.Snippet) (*snippetDoc, error) {
	data, err := encodeDocument(sn.Data)
	if err != nil {
		return nil, err
	}
	return &snippetDoc{
		ID:        sn.ID,
		ProjectID: sn.ProjectID,
		FolderID:  sn.FolderID,
		Name:      sn.Name,
		Data:      data,
		CreatedBy: sn.CreatedBy,
		CreatedAt: sn.CreatedAt,
		UpdatedAt: sn.UpdatedAt,
	}, nil
}

func fromSnippetDoc(d *snippetDoc) (*domain.Snippet, error) {
	data, err := decodeDocument(d.Data)
	if err != nil {
		return nil, fmt.Errorf("snippet %s: %w", d.ID, err)
	}
	return &domain.Snippet{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		FolderID:  d.FolderID,
		Name:      d.Name,
		Data:      data,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

// BSON dates have millisecond precision.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (m *MongoSnippetStore) CreateSnippet(ctx context.Context, sn *domain.Snippet) error {
	sn.CreatedAt = mongoNow()
	sn.UpdatedAt = sn.CreatedAt
	doc, err := toSnippetDoc(sn)
	if err != nil {
		return err
	}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

func (m *MongoSnippetStore) GetSnippet(ctx context.Context, id string) (*domain.Snippet, error) {
	var d snippetDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("snippet %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snippet: %w", err)
	}
	return fromSnippetDoc(&d)
}

func (m *MongoSnippetStore) ListSnippets(ctx context.Context, projectID string) ([]domain.Snippet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := m.coll.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.Snippet
	for cursor.Next(ctx) {
		var d snippetDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode snippet: %w", err)
		}
		sn, err := fromSnippetDoc(&d)
		if err != nil {
			return nil, err
		}
		out = append(out, *sn)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

func (m *MongoSnippetStore) UpdateSnippet(ctx context.Context, sn *domain.Snippet) error {
	data, err := encodeDocument(sn.Data)
	if err != nil {
		return err
	}
	sn.UpdatedAt = mongoNow()
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": sn.ID}, bson.M{"$set": bson.M{
		"folder_id":  sn.FolderID,
		"name":       sn.Name,
		"data":       data,
		"updated_at": sn.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update snippet: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("snippet %s: %w", sn.ID, domain.ErrNotFound)
	}
	return nil
}

func (m *MongoSnippetStore) DeleteSnippet(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	return nil
}

func (m *MongoSnippetStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *MongoSnippetStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
