package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const adCollectionName = "ads"

// AdRepository implements domain.AdRepository on MongoDB.
type AdRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewAdRepository ensures the feed indexes and returns the repository.
func NewAdRepository(db *mongo.Database, log *logger.Logger) (*AdRepository, error) {
	collection := db.Collection(adCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "favourited_by", Value: 1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for ads collection", zap.Error(err))
	} else {
		log.Info("Successfully ensured indexes for ads collection")
	}

	return &AdRepository{
		collection: collection,
		logger:     log.Named("AdRepository"),
	}, nil
}

func (r *AdRepository) Create(ctx context.Context, ad *domain.Ad) error {
	doc, err := fromDomainAd(ad)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to insert ad", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	ad.ID = doc.ID.Hex()
	r.logger.Debug("Ad inserted", zap.String("ad_id", ad.ID))
	return nil
}

func (r *AdRepository) FindByID(ctx context.Context, id string) (*domain.Ad, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAdNotFound
	}
	var doc adDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAdNotFound
		}
		r.logger.Error("Failed to get ad by ID", zap.String("ad_id", id), zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomainAd(), nil
}

// FindByOwner returns the owner's ads oldest first, which matches User.Ads order.
func (r *AdRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Ad, error) {
	oid, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.findMany(ctx, bson.M{"owner_id": oid}, opts)
}

func (r *AdRepository) Find(ctx context.Context, filter domain.AdFilter, sort domain.AdSort, skip, limit int64) ([]*domain.Ad, error) {
	opts := options.Find().SetSort(buildAdSort(sort)).SetSkip(skip).SetLimit(limit)
	return r.findMany(ctx, buildAdFilter(filter), opts)
}

func (r *AdRepository) Count(ctx context.Context, filter domain.AdFilter) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, buildAdFilter(filter))
	if err != nil {
		r.logger.Error("Failed to count ads", zap.Error(err))
		return 0, fmt.Errorf("db count failed: %w", err)
	}
	return n, nil
}

func (r *AdRepository) findMany(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*domain.Ad, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to find ads", zap.Error(err))
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []adDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode ads", zap.Error(err))
		return nil, fmt.Errorf("db cursor all failed: %w", err)
	}
	ads := make([]*domain.Ad, 0, len(docs))
	for i := range docs {
		ads = append(ads, docs[i].toDomainAd())
	}
	return ads, nil
}

// Update overwrites the mutable fields. Owner, favourites and creation time are
// never touched here.
func (r *AdRepository) Update(ctx context.Context, ad *domain.Ad) error {
	oid, err := primitive.ObjectIDFromHex(ad.ID)
	if err != nil {
		return domain.ErrAdNotFound
	}
	update := bson.M{"$set": bson.M{
		"title":       ad.Title,
		"category":    ad.Category,
		"state":       string(ad.State),
		"price":       ad.Price,
		"description": ad.Description,
		"images":      nonNil(ad.Images),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		r.logger.Error("Failed to update ad", zap.String("ad_id", ad.ID), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAdNotFound
	}
	return nil
}

func (r *AdRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAdNotFound
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		r.logger.Error("Failed to delete ad", zap.String("ad_id", id), zap.Error(err))
		return fmt.Errorf("db delete failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAdNotFound
	}
	return nil
}

// AddFavouritedBy only matches when the user is not yet in the set, so two
// racing requests cannot both succeed.
func (r *AdRepository) AddFavouritedBy(ctx context.Context, adID, userID string) error {
	adOID, userOID, err := parsePair(adID, userID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": adOID, "favourited_by": bson.M{"$ne": userOID}},
		bson.M{"$addToSet": bson.M{"favourited_by": userOID}},
	)
	if err != nil {
		r.logger.Error("Failed to add favourite to ad", zap.String("ad_id", adID), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, adOID, domain.ErrAlreadyInFavourites)
	}
	return nil
}

func (r *AdRepository) RemoveFavouritedBy(ctx context.Context, adID, userID string) error {
	adOID, userOID, err := parsePair(adID, userID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": adOID, "favourited_by": userOID},
		bson.M{"$pull": bson.M{"favourited_by": userOID}},
	)
	if err != nil {
		r.logger.Error("Failed to remove favourite from ad", zap.String("ad_id", adID), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, adOID, domain.ErrNotInFavourites)
	}
	return nil
}

// missOrConflict tells an absent ad apart from a failed set precondition.
func (r *AdRepository) missOrConflict(ctx context.Context, adOID primitive.ObjectID, precondition error) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": adOID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("db count failed: %w", err)
	}
	if n == 0 {
		return domain.ErrAdNotFound
	}
	return precondition
}

func parsePair(adID, userID string) (primitive.ObjectID, primitive.ObjectID, error) {
	adOID, err := primitive.ObjectIDFromHex(adID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, domain.ErrAdNotFound
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, domain.ErrUserNotFound
	}
	return adOID, userOID, nil
}
