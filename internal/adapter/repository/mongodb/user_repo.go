package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const userCollectionName = "users"

// UserRepository implements domain.UserRepository on MongoDB.
type UserRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewUserRepository ensures the uniqueness indexes. current_token is only
// indexed while it holds a string, so any number of users may be logged out.
func NewUserRepository(db *mongo.Database, log *logger.Logger) (*UserRepository, error) {
	collection := db.Collection(userCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "current_token", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"current_token": bson.M{"$type": "string"}}),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn("Failed to create indexes for users collection (may already exist)", zap.Error(err))
	} else {
		log.Info("Successfully ensured indexes for users collection")
	}

	return &UserRepository{
		collection: collection,
		logger:     log.Named("UserRepository"),
	}, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	doc, err := fromDomainUser(user)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		var writeException mongo.WriteException
		if errors.As(err, &writeException) {
			for _, writeError := range writeException.WriteErrors {
				if writeError.Code != 11000 {
					continue
				}
				switch {
				case strings.Contains(writeError.Message, "email_1"):
					r.logger.Warn("Duplicate email on insert", zap.String("email", user.Email))
					return domain.ErrEmailTaken
				case strings.Contains(writeError.Message, "phone_1"):
					r.logger.Warn("Duplicate phone on insert", zap.String("email", user.Email))
					return domain.ErrPhoneTaken
				}
			}
		}
		r.logger.Error("Failed to insert user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *UserRepository) FindByCurrentToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"current_token": token})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to find user", zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomainUser(), nil
}

// UpdateSession writes is_online, last_seen and current_token. A nil token
// removes the field.
func (r *UserRepository) UpdateSession(ctx context.Context, user *domain.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return domain.ErrUserNotFound
	}
	set := bson.M{"is_online": user.IsOnline, "last_seen": user.LastSeen}
	update := bson.M{"$set": set}
	if user.CurrentToken != nil {
		set["current_token"] = *user.CurrentToken
	} else {
		update["$unset"] = bson.M{"current_token": ""}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Warn("Session token already held by another user", zap.String("user_id", user.ID))
			return fmt.Errorf("%w: session token collision", domain.ErrConflict)
		}
		r.logger.Error("Failed to update session", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) AddAd(ctx context.Context, userID, adID string) error {
	return r.updateRefs(ctx, userID, adID, "$addToSet", "ads")
}

func (r *UserRepository) RemoveAd(ctx context.Context, userID, adID string) error {
	return r.updateRefs(ctx, userID, adID, "$pull", "ads")
}

func (r *UserRepository) AddFavourite(ctx context.Context, userID, adID string) error {
	return r.updateRefs(ctx, userID, adID, "$addToSet", "favourites")
}

func (r *UserRepository) RemoveFavourite(ctx context.Context, userID, adID string) error {
	return r.updateRefs(ctx, userID, adID, "$pull", "favourites")
}

// updateRefs applies a set operator to one of the reference arrays.
func (r *UserRepository) updateRefs(ctx context.Context, userID, adID, op, field string) error {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}
	adOID, err := primitive.ObjectIDFromHex(adID)
	if err != nil {
		return domain.ErrAdNotFound
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": userOID}, bson.M{op: bson.M{field: adOID}})
	if err != nil {
		r.logger.Error("Failed to update user references",
			zap.String("user_id", userID), zap.String("field", field), zap.String("op", op), zap.Error(err))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
