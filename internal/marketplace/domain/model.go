package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// PageSize is the fixed length of one page of the public ad feed.
const PageSize = 8

// CategoryAll disables the category predicate of the feed query.
const CategoryAll = "all"

// AdState is the condition of the advertised item.
type AdState string

const (
	AdStateUsed AdState = "used"
	AdStateNew  AdState = "new"
)

// IsValid checks if the AdState is one of the defined constants.
func (s AdState) IsValid() bool {
	switch s {
	case AdStateUsed, AdStateNew:
		return true
	}
	return false
}

// AdSort selects the ordering of the ad feed.
type AdSort string

const (
	SortNewest    AdSort = "newest"
	SortPriceAsc  AdSort = "PriceAsc"
	SortPriceDesc AdSort = "PriceDesc"
)

// ParseAdSort maps a query value to a sort key. Anything unknown sorts newest first.
func ParseAdSort(raw string) AdSort {
	switch AdSort(raw) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	}
	return SortNewest
}

// Ad is a single listing. Images holds media keys in upload order.
type Ad struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	State        AdState   `json:"state"`
	Price        float64   `json:"price"`
	Description  string    `json:"description"`
	Images       []string  `json:"images"`
	FavouritedBy []string  `json:"favouritedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsFavouritedBy reports whether userID is in the ad's favouritedBy set.
func (a *Ad) IsFavouritedBy(userID string) bool {
	return slices.Contains(a.FavouritedBy, userID)
}

// User is a registered account together with its back-references.
type User struct {
	ID           string
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	IsOnline     bool
	LastSeen     time.Time
	CurrentToken *string
	Ads          []string
	Favourites   []string
	CreatedAt    time.Time
}

// OwnsAd is the ownership rule used by update and remove.
func (u *User) OwnsAd(adID string) bool {
	return slices.Contains(u.Ads, adID)
}

// HasFavourite reports whether adID is in the user's favourites.
func (u *User) HasFavourite(adID string) bool {
	return slices.Contains(u.Favourites, adID)
}

// OwnerProfile is the public view of an ad owner, with their ads expanded.
type OwnerProfile struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
	Ads      []*Ad     `json:"ads"`
}

// AdWithOwner is an ad with its owner populated.
type AdWithOwner struct {
	*Ad
	Owner *OwnerProfile `json:"owner"`
}

// MediaBlob is one uploaded file waiting to be stored.
type MediaBlob struct {
	Name        string
	ContentType string
	Data        []byte
}

// AdSpec carries the fields of a new ad.
type AdSpec struct {
	Title       string
	Category    string
	State       AdState
	Price       float64
	Description string
}

// KeyList is a list of media keys that also decodes from a single JSON string.
type KeyList []string

func (k *KeyList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*k = KeyList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("filesToRemove must be a string or a list of strings: %w", err)
	}
	*k = KeyList(many)
	return nil
}

// AdPatch is a partial update. Nil fields are left untouched. A nil
// FilesToRemove keeps every current image.
type AdPatch struct {
	Title         *string  `json:"title,omitempty"`
	Category      *string  `json:"category,omitempty"`
	State         *AdState `json:"state,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Description   *string  `json:"description,omitempty"`
	FilesToRemove KeyList  `json:"filesToRemove,omitempty"`
}

// AdFilter is the predicate of the feed query.
type AdFilter struct {
	Category      string
	MinPrice      float64
	MaxPrice      float64
	RequireImages bool
	Phrase        string
}

// AdQuery is one request for a page of the feed.
type AdQuery struct {
	Page   int64
	Sort   AdSort
	Filter AdFilter
}

// Offset returns how many matching ads precede the requested page.
func (q AdQuery) Offset() int64 {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * PageSize
}

// TotalPages is ceil(count / PageSize).
func TotalPages(count int64) int64 {
	if count <= 0 {
		return 0
	}
	return (count + PageSize - 1) / PageSize
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// CatalogRules are the configured limits ads are validated against.
type CatalogRules struct {
	Categories []string
	MinPrice   float64
	MaxPrice   float64
}

// HasCategory reports whether category is in the configured set.
func (r CatalogRules) HasCategory(category string) bool {
	return slices.Contains(r.Categories, category)
}

// PriceInBounds reports whether price lies within [MinPrice, MaxPrice].
func (r CatalogRules) PriceInBounds(price float64) bool {
	return price >= r.MinPrice && price <= r.MaxPrice
}
