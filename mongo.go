package petalpress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// mongoPost is the wire shape of a post document.
type mongoPost struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	Image     string             `bson:"image,omitempty"`
	Published bool               `bson:"published"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d mongoPost) toPost() Post {
	return Post{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Body:      d.Body,
		Image:     d.Image,
		Published: d.Published,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoStore implements PostStore against a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	posts  *mongo.Collection
}

// NewMongoStore connects to the given MongoDB URI and binds the post
// collection. Connect does not verify the server; call Ready for the
// startup handshake.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		posts:  client.Database(database).Collection(collection),
	}, nil
}

// Ready pings the primary. The caller bounds ctx; a failure here means the
// store never became reachable and startup should abort.
func (s *MongoStore) Ready(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return mapMongoErr(err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func (s *MongoStore) list(ctx context.Context, filter bson.M) ([]Post, error) {
	cur, err := s.posts.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, mapMongoErr(err)
	}
	defer cur.Close(ctx)

	var posts []Post
	for cur.Next(ctx) {
		var doc mongoPost
		if err := cur.Decode(&doc); err != nil {
			return nil, mapMongoErr(err)
		}
		posts = append(posts, doc.toPost())
	}
	if err := cur.Err(); err != nil {
		return nil, mapMongoErr(err)
	}
	return posts, nil
}

func (s *MongoStore) ListAll(ctx context.Context) ([]Post, error) {
	return s.list(ctx, bson.M{})
}

func (s *MongoStore) ListPublished(ctx context.Context) ([]Post, error) {
	return s.list(ctx, bson.M{"published": true})
}

func (s *MongoStore) Get(ctx context.Context, id string) (Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Post{}, ErrNotFound
	}
	var doc mongoPost
	if err := s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return Post{}, mapMongoErr(err)
	}
	return doc.toPost(), nil
}

func (s *MongoStore) Create(ctx context.Context, fields PostFields) (Post, error) {
	now := time.Now().UTC()
	doc := mongoPost{
		Title:     fields.Title,
		Body:      fields.Body,
		Image:     fields.Image,
		Published: fields.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := s.posts.InsertOne(ctx, doc)
	if err != nil {
		return Post{}, mapMongoErr(err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toPost(), nil
}

func (s *MongoStore) Update(ctx context.Context, id string, fields PostFields) (Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Post{}, ErrNotFound
	}
	res, err := s.posts.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"title":     fields.Title,
		"body":      fields.Body,
		"image":     fields.Image,
		"published": fields.Published,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return Post{}, mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return Post{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *MongoStore) SetPublished(ctx context.Context, id string, published bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.posts.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"published": published,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapMongoErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mongoUnauthorized is the server error code for access-rule rejections.
const mongoUnauthorized = 13

// mapMongoErr converts driver errors onto the store taxonomy so callers
// never depend on driver types.
func mapMongoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == mongoUnauthorized {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, cmdErr.Message)
	}
	// Network failures, timeouts, and anything unrecognized are transient.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
