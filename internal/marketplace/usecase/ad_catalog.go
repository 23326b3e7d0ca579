package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
)

// AdCatalog owns ad records, their media and the owner back-reference.
type AdCatalog struct {
	ads    domain.AdRepository
	users  *UserDirectory
	files  domain.FileStore
	cache  domain.AdCache
	events domain.EventPublisher
	rules  domain.CatalogRules
	logger *logger.Logger
}

// NewAdCatalog wires the catalog. cache and events may be nil.
func NewAdCatalog(
	ads domain.AdRepository,
	users *UserDirectory,
	files domain.FileStore,
	cache domain.AdCache,
	events domain.EventPublisher,
	rules domain.CatalogRules,
	log *logger.Logger,
) *AdCatalog {
	return &AdCatalog{
		ads:    ads,
		users:  users,
		files:  files,
		cache:  cache,
		events: events,
		rules:  rules,
		logger: log.Named("AdCatalog"),
	}
}

// Rules returns the catalog limits, for boundary validation.
func (c *AdCatalog) Rules() domain.CatalogRules {
	return c.rules
}

// Create stores the media, persists the ad and appends it to owner.Ads.
// No ad record exists if any upload fails.
func (c *AdCatalog) Create(ctx context.Context, owner *domain.User, spec domain.AdSpec, blobs []domain.MediaBlob) (*domain.Ad, error) {
	c.logger.Info("Creating ad", zap.String("owner_id", owner.ID), zap.String("category", spec.Category), zap.Int("media", len(blobs)))

	if !c.rules.HasCategory(spec.Category) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, spec.Category)
	}
	if !spec.State.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidState, spec.State)
	}
	if !c.rules.PriceInBounds(spec.Price) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPrice, spec.Price)
	}

	keys, err := c.storeAll(ctx, blobs)
	if err != nil {
		return nil, err
	}

	ad := &domain.Ad{
		OwnerID:      owner.ID,
		Title:        strings.TrimSpace(spec.Title),
		Category:     spec.Category,
		State:        spec.State,
		Price:        spec.Price,
		Description:  strings.TrimSpace(spec.Description),
		Images:       keys,
		FavouritedBy: []string{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.ads.Create(ctx, ad); err != nil {
		c.logger.Error("Failed to persist ad", zap.Error(err))
		c.releaseMedia(ctx, keys)
		return nil, fmt.Errorf("%w: create ad: %v", domain.ErrUnknown, err)
	}

	if err := c.users.AddAd(ctx, owner, ad.ID); err != nil {
		// Without the back-reference the owner could never manage the ad.
		if delErr := c.ads.Delete(ctx, ad.ID); delErr != nil {
			c.logger.Error("Failed to roll back orphaned ad", zap.String("ad_id", ad.ID), zap.Error(delErr))
		}
		c.releaseMedia(ctx, keys)
		return nil, fmt.Errorf("%w: attach ad to owner: %v", domain.ErrUnknown, err)
	}

	publishEvent(ctx, c.events, c.logger, domain.SubjectAdCreated, map[string]interface{}{
		"ad_id":    ad.ID,
		"owner_id": ad.OwnerID,
		"category": ad.Category,
		"price":    ad.Price,
	})
	c.logger.Info("Ad created", zap.String("ad_id", ad.ID))
	return ad, nil
}

// FindAll returns one page of the feed and the page count for the same filter.
func (c *AdCatalog) FindAll(ctx context.Context, q domain.AdQuery) ([]*domain.Ad, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Sort == "" {
		q.Sort = domain.SortNewest
	}
	c.logger.Debug("Listing ads", zap.Int64("page", q.Page), zap.String("sort", string(q.Sort)), zap.Any("filter", q.Filter))

	ads, err := c.ads.Find(ctx, q.Filter, q.Sort, q.Offset(), domain.PageSize)
	if err != nil {
		c.logger.Error("Failed to query ads", zap.Error(err))
		return nil, 0, fmt.Errorf("%w: find ads: %v", domain.ErrUnknown, err)
	}
	count, err := c.ads.Count(ctx, q.Filter)
	if err != nil {
		c.logger.Error("Failed to count ads", zap.Error(err))
		return nil, 0, fmt.Errorf("%w: count ads: %v", domain.ErrUnknown, err)
	}
	if ads == nil {
		ads = []*domain.Ad{}
	}
	return ads, domain.TotalPages(count), nil
}

// FindOne resolves an ad through the cache. Every lookup failure is ErrAdNotFound.
func (c *AdCatalog) FindOne(ctx context.Context, id string) (*domain.Ad, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, id)
		if err != nil {
			c.logger.Warn("Ad cache read failed", zap.String("ad_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	ad, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, ad); err != nil {
			c.logger.Warn("Ad cache write failed", zap.String("ad_id", id), zap.Error(err))
		}
	}
	return ad, nil
}

// FindOneWithOwner returns the ad with its owner's public profile and ads.
func (c *AdCatalog) FindOneWithOwner(ctx context.Context, id string) (*domain.AdWithOwner, error) {
	ad, err := c.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := c.users.FindByID(ctx, ad.OwnerID)
	if err != nil || owner == nil {
		c.logger.Warn("Ad owner lookup failed", zap.String("ad_id", id), zap.String("owner_id", ad.OwnerID), zap.Error(err))
		return nil, domain.ErrAdNotFound
	}
	ownerAds, err := c.ads.FindByOwner(ctx, owner.ID)
	if err != nil {
		c.logger.Warn("Owner ads lookup failed", zap.String("owner_id", owner.ID), zap.Error(err))
		return nil, domain.ErrAdNotFound
	}
	return &domain.AdWithOwner{
		Ad: ad,
		Owner: &domain.OwnerProfile{
			ID:       owner.ID,
			Username: owner.Username,
			Email:    owner.Email,
			Phone:    owner.Phone,
			IsOnline: owner.IsOnline,
			LastSeen: owner.LastSeen,
			Ads:      orderByIDs(ownerAds, owner.Ads),
		},
	}, nil
}

// FindByOwner returns every ad of owner in creation order.
func (c *AdCatalog) FindByOwner(ctx context.Context, owner *domain.User) ([]*domain.Ad, error) {
	ads, err := c.ads.FindByOwner(ctx, owner.ID)
	if err != nil {
		c.logger.Warn("Failed to list owner ads", zap.String("owner_id", owner.ID), zap.Error(err))
		return nil, domain.ErrUserNotFound
	}
	if ads == nil {
		ads = []*domain.Ad{}
	}
	return ads, nil
}

// Update applies patch to an ad the actor owns. New media is uploaded before
// anything is persisted; removed media is released after the record is saved.
func (c *AdCatalog) Update(ctx context.Context, actor *domain.User, id string, patch domain.AdPatch, blobs []domain.MediaBlob) (domain.Response, error) {
	c.logger.Info("Updating ad", zap.String("ad_id", id), zap.String("actor_id", actor.ID))

	ad, err := c.load(ctx, id)
	if err != nil {
		return domain.Response{}, err
	}
	if !actor.OwnsAd(ad.ID) {
		c.logger.Warn("Update rejected, actor does not own ad", zap.String("ad_id", id), zap.String("actor_id", actor.ID))
		return domain.Response{}, domain.ErrNotOwner
	}
	if err := c.validatePatch(patch); err != nil {
		return domain.Response{}, err
	}

	uploaded, err := c.storeAll(ctx, blobs)
	if err != nil {
		return domain.Response{}, err
	}

	kept, removed := splitImages(ad.Images, patch.FilesToRemove)
	applyPatch(ad, patch)
	ad.Images = append(kept, uploaded...)

	if err := c.ads.Update(ctx, ad); err != nil {
		c.logger.Error("Failed to persist ad update", zap.String("ad_id", id), zap.Error(err))
		c.releaseMedia(ctx, uploaded)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Response{}, domain.ErrAdNotFound
		}
		return domain.Response{}, fmt.Errorf("%w: update ad: %v", domain.ErrUnknown, err)
	}
	c.releaseMedia(ctx, removed)
	c.forget(ctx, id)

	publishEvent(ctx, c.events, c.logger, domain.SubjectAdUpdated, map[string]interface{}{
		"ad_id":          ad.ID,
		"owner_id":       ad.OwnerID,
		"images_added":   len(uploaded),
		"images_removed": len(removed),
	})
	return domain.OK(domain.MsgAdUpdated), nil
}

// Remove deletes an ad the actor owns. Media is released and favouriting users
// are detached before the owner reference and the record go, so an interrupted
// removal leaves at most a dangling favourite.
func (c *AdCatalog) Remove(ctx context.Context, actor *domain.User, id string) (domain.Response, error) {
	c.logger.Info("Removing ad", zap.String("ad_id", id), zap.String("actor_id", actor.ID))

	ad, err := c.load(ctx, id)
	if err != nil {
		return domain.Response{}, err
	}
	if !actor.OwnsAd(ad.ID) {
		c.logger.Warn("Remove rejected, actor does not own ad", zap.String("ad_id", id), zap.String("actor_id", actor.ID))
		return domain.Response{}, domain.ErrNotOwner
	}

	c.releaseMedia(ctx, ad.Images)

	for _, userID := range ad.FavouritedBy {
		fan, err := c.users.FindByID(ctx, userID)
		if err != nil || fan == nil {
			c.logger.Warn("Skipping favourite detach, user lookup failed", zap.String("ad_id", id), zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if err := c.users.RemoveAdFromFavourites(ctx, fan, ad.ID); err != nil {
			c.logger.Warn("Skipping favourite detach, update failed", zap.String("ad_id", id), zap.String("user_id", userID), zap.Error(err))
		}
	}

	if err := c.users.RemoveAd(ctx, actor, ad.ID); err != nil {
		return domain.Response{}, fmt.Errorf("%w: detach ad from owner: %v", domain.ErrUnknown, err)
	}
	if err := c.ads.Delete(ctx, ad.ID); err != nil {
		c.logger.Error("Failed to delete ad record", zap.String("ad_id", id), zap.Error(err))
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Response{}, domain.ErrAdNotFound
		}
		return domain.Response{}, fmt.Errorf("%w: delete ad: %v", domain.ErrUnknown, err)
	}
	c.forget(ctx, id)

	publishEvent(ctx, c.events, c.logger, domain.SubjectAdDeleted, map[string]interface{}{
		"ad_id":    ad.ID,
		"owner_id": ad.OwnerID,
	})
	c.logger.Info("Ad removed", zap.String("ad_id", id))
	return domain.OK(domain.MsgAdDeleted), nil
}

// AddUserToFavouritedBy records user on the ad side of the favourite link.
func (c *AdCatalog) AddUserToFavouritedBy(ctx context.Context, user *domain.User, id string) (*domain.Ad, error) {
	ad, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ad.IsFavouritedBy(user.ID) {
		return nil, domain.ErrAlreadyInFavourites
	}
	if err := c.ads.AddFavouritedBy(ctx, ad.ID, user.ID); err != nil {
		return nil, c.favouriteWriteError(err)
	}
	ad.FavouritedBy = append(ad.FavouritedBy, user.ID)
	c.forget(ctx, id)
	return ad, nil
}

// RemoveUserFromFavouritedBy drops user from the ad side of the favourite link.
func (c *AdCatalog) RemoveUserFromFavouritedBy(ctx context.Context, user *domain.User, id string) (*domain.Ad, error) {
	ad, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ad.IsFavouritedBy(user.ID) {
		return nil, domain.ErrNotInFavourites
	}
	if err := c.ads.RemoveFavouritedBy(ctx, ad.ID, user.ID); err != nil {
		return nil, c.favouriteWriteError(err)
	}
	ad.FavouritedBy = without(ad.FavouritedBy, user.ID)
	c.forget(ctx, id)
	return ad, nil
}

func (c *AdCatalog) favouriteWriteError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyInFavourites), errors.Is(err, domain.ErrNotInFavourites):
		return err
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrAdNotFound
	}
	c.logger.Error("Favourite write failed", zap.Error(err))
	return fmt.Errorf("%w: favourite write: %v", domain.ErrUnknown, err)
}

// load reads an ad from the store, bypassing the cache.
func (c *AdCatalog) load(ctx context.Context, id string) (*domain.Ad, error) {
	ad, err := c.ads.FindByID(ctx, id)
	if err != nil || ad == nil {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("Ad lookup failed", zap.String("ad_id", id), zap.Error(err))
		}
		return nil, domain.ErrAdNotFound
	}
	return ad, nil
}

func (c *AdCatalog) validatePatch(p domain.AdPatch) error {
	if p.Category != nil && !c.rules.HasCategory(*p.Category) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, *p.Category)
	}
	if p.State != nil && !p.State.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidState, *p.State)
	}
	if p.Price != nil && !c.rules.PriceInBounds(*p.Price) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPrice, *p.Price)
	}
	return nil
}

// storeAll uploads blobs in order. On failure the already stored ones are released.
func (c *AdCatalog) storeAll(ctx context.Context, blobs []domain.MediaBlob) ([]string, error) {
	keys := make([]string, 0, len(blobs))
	for _, b := range blobs {
		key, err := c.files.Store(ctx, b.Data, b.ContentType, b.Name)
		if err != nil {
			c.logger.Error("Media upload failed", zap.String("name", b.Name), zap.Error(err))
			c.releaseMedia(ctx, keys)
			return nil, fmt.Errorf("%w: store %q: %v", domain.ErrStorage, b.Name, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// releaseMedia deletes keys, logging rather than returning failures.
func (c *AdCatalog) releaseMedia(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := c.files.Delete(ctx, keys); err != nil {
		c.logger.Warn("Media delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *AdCatalog) forget(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, id); err != nil {
		c.logger.Warn("Ad cache invalidation failed", zap.String("ad_id", id), zap.Error(err))
	}
}

// splitImages partitions current into kept and removed. Keys in toRemove that
// are not images of the ad are ignored. A nil toRemove keeps everything.
func splitImages(current []string, toRemove domain.KeyList) (kept, removed []string) {
	kept = make([]string, 0, len(current))
	for _, key := range current {
		if toRemove != nil && slices.Contains(toRemove, key) {
			removed = append(removed, key)
			continue
		}
		kept = append(kept, key)
	}
	return kept, removed
}

func applyPatch(ad *domain.Ad, p domain.AdPatch) {
	if p.Title != nil {
		ad.Title = strings.TrimSpace(*p.Title)
	}
	if p.Category != nil {
		ad.Category = *p.Category
	}
	if p.State != nil {
		ad.State = *p.State
	}
	if p.Price != nil {
		ad.Price = *p.Price
	}
	if p.Description != nil {
		ad.Description = strings.TrimSpace(*p.Description)
	}
}

// orderByIDs returns ads in the order of ids; ads missing from ids go last.
func orderByIDs(ads []*domain.Ad, ids []string) []*domain.Ad {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	out := slices.Clone(ads)
	slices.SortStableFunc(out, func(a, b *domain.Ad) int {
		pa, okA := pos[a.ID]
		pb, okB := pos[b.ID]
		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
	if out == nil {
		out = []*domain.Ad{}
	}
	return out
}
