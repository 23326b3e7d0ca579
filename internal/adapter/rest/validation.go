package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// adForm is the create payload. Price stays textual until it passes the
// price rule.
type adForm struct {
	Title       string `json:"title" validate:"required,min=5,max=40"`
	Category    string `json:"category" validate:"required,category"`
	State       string `json:"state" validate:"required,oneof=used new"`
	Price       string `json:"price" validate:"required,price"`
	Description string `json:"description" validate:"required,min=10,max=400"`
}

func (f adForm) toSpec() domain.AdSpec {
	price, _ := strconv.ParseFloat(strings.TrimSpace(f.Price), 64)
	return domain.AdSpec{
		Title:       f.Title,
		Category:    f.Category,
		State:       domain.AdState(f.State),
		Price:       price,
		Description: f.Description,
	}
}

// adPatchBody is the update payload. Nil fields are left untouched.
type adPatchBody struct {
	Title         *string        `json:"title" validate:"omitnil,min=5,max=40"`
	Category      *string        `json:"category" validate:"omitnil,category"`
	State         *string        `json:"state" validate:"omitnil,oneof=used new"`
	Price         *flexPrice     `json:"price" validate:"omitnil,price"`
	Description   *string        `json:"description" validate:"omitnil,min=10,max=400"`
	FilesToRemove domain.KeyList `json:"filesToRemove"`
}

func (b *adPatchBody) trim() {
	for _, p := range []*string{b.Title, b.Category, b.Description, b.State} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

func (b adPatchBody) toPatch() domain.AdPatch {
	patch := domain.AdPatch{
		Title:         b.Title,
		Category:      b.Category,
		Description:   b.Description,
		FilesToRemove: b.FilesToRemove,
	}
	if b.State != nil {
		state := domain.AdState(*b.State)
		patch.State = &state
	}
	if b.Price != nil {
		price, _ := strconv.ParseFloat(strings.TrimSpace(string(*b.Price)), 64)
		patch.Price = &price
	}
	return patch
}

// flexPrice holds a price sent either as a JSON number or as a numeric string.
type flexPrice string

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = flexPrice(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("price must be a number")
	}
	*p = flexPrice(n.String())
	return nil
}

// newValidator registers the marketplace rules. rules is read on every
// validation so category and price bounds follow the catalog.
func newValidator(rules func() domain.CatalogRules) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return rules().HasCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		var price float64
		switch fl.Field().Kind() {
		case reflect.String:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			if err != nil {
				return false
			}
			price = parsed
		case reflect.Float32, reflect.Float64:
			price = fl.Field().Float()
		default:
			return false
		}
		return rules().PriceInBounds(price)
	})
	return v
}

// validate runs the struct rules and returns a client message, or "" when s is
// valid.
func (h *Handler) validate(s interface{}) string {
	err := h.validator.Struct(s)
	if err == nil {
		return ""
	}
	msgs := formatValidationErrors(err, h.ads.Rules())
	if len(msgs) == 0 {
		return "Invalid request"
	}
	return strings.Join(msgs, "; ")
}

// formatValidationErrors turns validator.ValidationErrors into one message per
// failed field.
func formatValidationErrors(err error, rules domain.CatalogRules) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "email", "phone":
			out = append(out, fmt.Sprintf("%s is not valid", field))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "category":
			out = append(out, fmt.Sprintf("%s must be one of: %s", field, strings.Join(rules.Categories, ", ")))
		case "price":
			out = append(out, fmt.Sprintf("%s must be a number between %v and %v", field, rules.MinPrice, rules.MaxPrice))
		default:
			out = append(out, fmt.Sprintf("Validation failed on field '%s' for tag '%s'", field, fe.Tag()))
		}
	}
	return out
}
