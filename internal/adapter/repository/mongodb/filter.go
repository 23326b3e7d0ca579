package mongodb

import (
	"regexp"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// buildAdFilter translates the feed predicate. The phrase is matched literally
// and case-insensitively against title or description.
func buildAdFilter(f domain.AdFilter) bson.M {
	query := bson.M{
		"price": bson.M{"$gte": f.MinPrice, "$lte": f.MaxPrice},
	}
	if f.Category != "" && f.Category != domain.CategoryAll {
		query["category"] = f.Category
	}
	if f.RequireImages {
		query["images.0"] = bson.M{"$exists": true}
	}
	if f.Phrase != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Phrase), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return query
}

// buildAdSort orders the feed. _id breaks ties so paging is stable.
func buildAdSort(s domain.AdSort) bson.D {
	switch s {
	case domain.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case domain.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}
