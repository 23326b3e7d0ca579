package usecase

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const favouritesFanOut = 8

// FavouritesCoordinator is the only writer of the user <-> ad favourite link.
// The two sides are written one after the other without rollback: when the
// user side fails the ad keeps recording the favourite.
type FavouritesCoordinator struct {
	catalog *AdCatalog
	users   *UserDirectory
	events  domain.EventPublisher
	logger  *logger.Logger
}

func NewFavouritesCoordinator(catalog *AdCatalog, users *UserDirectory, events domain.EventPublisher, log *logger.Logger) *FavouritesCoordinator {
	return &FavouritesCoordinator{
		catalog: catalog,
		users:   users,
		events:  events,
		logger:  log.Named("FavouritesCoordinator"),
	}
}

// FindFavourites resolves user's favourites concurrently, keeping their order.
// Any failed resolution fails the whole call.
func (f *FavouritesCoordinator) FindFavourites(ctx context.Context, user *domain.User) ([]*domain.Ad, error) {
	ids := append([]string(nil), user.Favourites...)
	ads := make([]*domain.Ad, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(favouritesFanOut)
	for i, id := range ids {
		g.Go(func() error {
			ad, err := f.catalog.FindOne(gctx, id)
			if err != nil {
				return err
			}
			ads[i] = ad
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Warn("Failed to resolve favourites", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return ads, nil
}

// AddToFavourites records the favourite on the ad, then on the user.
func (f *FavouritesCoordinator) AddToFavourites(ctx context.Context, user *domain.User, adID string) (domain.Response, error) {
	f.logger.Info("Adding favourite", zap.String("user_id", user.ID), zap.String("ad_id", adID))

	if _, err := f.catalog.AddUserToFavouritedBy(ctx, user, adID); err != nil {
		return domain.Response{}, err
	}
	if err := f.users.AddAdToFavourites(ctx, user, adID); err != nil {
		f.logger.Error("Favourite left one-sided: ad updated, user not", zap.String("user_id", user.ID), zap.String("ad_id", adID), zap.Error(err))
		return domain.Response{}, err
	}

	publishEvent(ctx, f.events, f.logger, domain.SubjectAdFavourited, map[string]interface{}{
		"ad_id":   adID,
		"user_id": user.ID,
	})
	return domain.OK(domain.MsgAdAddedToFavourites), nil
}

// RemoveFromFavourites drops the favourite from the ad, then from the user.
func (f *FavouritesCoordinator) RemoveFromFavourites(ctx context.Context, user *domain.User, adID string) (domain.Response, error) {
	f.logger.Info("Removing favourite", zap.String("user_id", user.ID), zap.String("ad_id", adID))

	if _, err := f.catalog.RemoveUserFromFavouritedBy(ctx, user, adID); err != nil {
		return domain.Response{}, err
	}
	if err := f.users.RemoveAdFromFavourites(ctx, user, adID); err != nil {
		f.logger.Error("Favourite left one-sided: ad updated, user not", zap.String("user_id", user.ID), zap.String("ad_id", adID), zap.Error(err))
		return domain.Response{}, err
	}

	publishEvent(ctx, f.events, f.logger, domain.SubjectAdUnfavourited, map[string]interface{}{
		"ad_id":   adID,
		"user_id": user.ID,
	})
	return domain.OK(domain.MsgAdRemovedFromFavourites), nil
}
