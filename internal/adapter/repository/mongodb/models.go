package mongodb

import (
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type adDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	OwnerID      primitive.ObjectID   `bson:"owner_id"`
	Title        string               `bson:"title"`
	Category     string               `bson:"category"`
	State        string               `bson:"state"`
	Price        float64              `bson:"price"`
	Description  string               `bson:"description"`
	Images       []string             `bson:"images"`
	FavouritedBy []primitive.ObjectID `bson:"favourited_by"`
	CreatedAt    time.Time            `bson:"created_at"`
}

type userDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	Phone        string               `bson:"phone"`
	Password     string               `bson:"password"`
	IsOnline     bool                 `bson:"is_online"`
	LastSeen     time.Time            `bson:"last_seen"`
	CurrentToken *string              `bson:"current_token,omitempty"`
	Ads          []primitive.ObjectID `bson:"ads"`
	Favourites   []primitive.ObjectID `bson:"favourites"`
	CreatedAt    time.Time            `bson:"created_at"`
}

func fromDomainAd(a *domain.Ad) (*adDocument, error) {
	doc := &adDocument{
		Title:       a.Title,
		Category:    a.Category,
		State:       string(a.State),
		Price:       a.Price,
		Description: a.Description,
		Images:      nonNil(a.Images),
		CreatedAt:   a.CreatedAt,
	}
	var err error
	if a.ID != "" {
		if doc.ID, err = primitive.ObjectIDFromHex(a.ID); err != nil {
			return nil, fmt.Errorf("invalid ad id %q: %w", a.ID, err)
		}
	}
	if doc.OwnerID, err = primitive.ObjectIDFromHex(a.OwnerID); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", a.OwnerID, err)
	}
	if doc.FavouritedBy, err = toObjectIDs(a.FavouritedBy); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *adDocument) toDomainAd() *domain.Ad {
	return &domain.Ad{
		ID:           d.ID.Hex(),
		OwnerID:      d.OwnerID.Hex(),
		Title:        d.Title,
		Category:     d.Category,
		State:        domain.AdState(d.State),
		Price:        d.Price,
		Description:  d.Description,
		Images:       nonNil(d.Images),
		FavouritedBy: toHexes(d.FavouritedBy),
		CreatedAt:    d.CreatedAt,
	}
}

func fromDomainUser(u *domain.User) (*userDocument, error) {
	doc := &userDocument{
		Username:     u.Username,
		Email:        u.Email,
		Phone:        u.Phone,
		Password:     u.PasswordHash,
		IsOnline:     u.IsOnline,
		LastSeen:     u.LastSeen,
		CurrentToken: u.CurrentToken,
		CreatedAt:    u.CreatedAt,
	}
	var err error
	if u.ID != "" {
		if doc.ID, err = primitive.ObjectIDFromHex(u.ID); err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", u.ID, err)
		}
	}
	if doc.Ads, err = toObjectIDs(u.Ads); err != nil {
		return nil, err
	}
	if doc.Favourites, err = toObjectIDs(u.Favourites); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *userDocument) toDomainUser() *domain.User {
	return &domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.Password,
		IsOnline:     d.IsOnline,
		LastSeen:     d.LastSeen,
		CurrentToken: d.CurrentToken,
		Ads:          toHexes(d.Ads),
		Favourites:   toHexes(d.Favourites),
		CreatedAt:    d.CreatedAt,
	}
}

func toObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("invalid reference id %q: %w", id, err)
		}
		out = append(out, oid)
	}
	return out, nil
}

func toHexes(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
