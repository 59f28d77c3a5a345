package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const privateUploadCollectionName = "private_uploads"

// privateUploadDocument is the stored shape of a domain.PrivateUpload.
type privateUploadDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       string             `bson:"user_id"`
	Purpose      string             `bson:"purpose"`
	Storage      string             `bson:"storage"`
	StorageKey   string             `bson:"storage_key"`
	Mime         string             `bson:"mime"`
	Kind         string             `bson:"kind"`
	SizeBytes    int64              `bson:"size_bytes"`
	OriginalName string             `bson:"original_name"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d privateUploadDocument) toDomain() *domain.PrivateUpload {
	return &domain.PrivateUpload{
		ID:           d.ID.Hex(),
		OwnerUserID:  d.UserID,
		Purpose:      d.Purpose,
		Storage:      d.Storage,
		StorageKey:   d.StorageKey,
		Mime:         d.Mime,
		Kind:         domain.Kind(d.Kind),
		SizeBytes:    d.SizeBytes,
		OriginalName: d.OriginalName,
		CreatedAt:    d.CreatedAt,
	}
}

// mongoPrivateUploadRepository implements repository.PrivateUploadRepository
type mongoPrivateUploadRepository struct {
	collection *mongo.Collection
}

// NewMongoPrivateUploadRepository creates a PrivateUpload repository backed by MongoDB.
func NewMongoPrivateUploadRepository(db *mongo.Database) repository.PrivateUploadRepository {
	return &mongoPrivateUploadRepository{
		collection: db.Collection(privateUploadCollectionName),
	}
}

// Create inserts a new private upload row.
func (r *mongoPrivateUploadRepository) Create(ctx context.Context, upload *domain.PrivateUpload) (string, error) {
	if upload.OwnerUserID == "" || upload.StorageKey == "" {
		return "", errors.New("private upload requires owner and storage key")
	}

	doc := privateUploadDocument{
		ID:           primitive.NewObjectID(),
		UserID:       upload.OwnerUserID,
		Purpose:      upload.Purpose,
		Storage:      upload.Storage,
		StorageKey:   upload.StorageKey,
		Mime:         upload.Mime,
		Kind:         string(upload.Kind),
		SizeBytes:    upload.SizeBytes,
		OriginalName: upload.OriginalName,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", err
	}

	upload.ID = doc.ID.Hex()
	upload.CreatedAt = doc.CreatedAt
	return upload.ID, nil
}

// GetByID retrieves a private upload by its hex ID.
func (r *mongoPrivateUploadRepository) GetByID(ctx context.Context, id string) (*domain.PrivateUpload, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	var doc privateUploadDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// Delete removes a private upload row.
func (r *mongoPrivateUploadRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePrivateUploadIndexes creates necessary indexes for the private_uploads collection.
func EnsurePrivateUploadIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Listing a user's uploads, newest first
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "storage_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// PrivateUploadCollection returns the collection used by the repository.
func PrivateUploadCollection(db *mongo.Database) *mongo.Collection {
	return db.Collection(privateUploadCollectionName)
}
