package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	formFiles         = "files"
	formFilesToRemove = "filesToRemove"
)

type adListResponse struct {
	domain.Response
	Ads        []adView `json:"ads"`
	Page       int64    `json:"page"`
	TotalPages int64    `json:"totalPages"`
}

type adsResponse struct {
	domain.Response
	Ads []adView `json:"ads"`
}

type adResponse struct {
	domain.Response
	Ad interface{} `json:"ad"`
}

// ListAds handles GET /ads.
func (h *Handler) ListAds(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseAdQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	ads, totalPages, err := h.ads.FindAll(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adListResponse{
		Response:   domain.OK(""),
		Ads:        h.toAdViews(ads),
		Page:       max(q.Page, 1),
		TotalPages: totalPages,
	})
}

// ListOwnAds handles GET /ads/user.
func (h *Handler) ListOwnAds(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}
	ads, err := h.ads.FindByOwner(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adsResponse{Response: domain.OK(""), Ads: h.toAdViews(ads)})
}

// GetAd handles GET /ads/{id}. The owner is populated unless owner=false.
func (h *Handler) GetAd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if withOwner, err := strconv.ParseBool(r.URL.Query().Get("owner")); err == nil && !withOwner {
		ad, err := h.ads.FindOne(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, adResponse{Response: domain.OK(""), Ad: h.toAdView(ad)})
		return
	}

	found, err := h.ads.FindOneWithOwner(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view := adWithOwnerView{adView: h.toAdView(found.Ad)}
	if found.Owner != nil {
		view.Owner = ownerView{
			ID:       found.Owner.ID,
			Username: found.Owner.Username,
			Email:    found.Owner.Email,
			Phone:    found.Owner.Phone,
			IsOnline: found.Owner.IsOnline,
			LastSeen: found.Owner.LastSeen,
			Ads:      h.toAdViews(found.Owner.Ads),
		}
	}
	writeJSON(w, http.StatusOK, adResponse{Response: domain.OK(""), Ad: view})
}

// CreateAd handles POST /ads.
func (h *Handler) CreateAd(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}
	if err := h.parseForm(w, r); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	form := adForm{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		State:       strings.TrimSpace(r.FormValue("state")),
		Price:       strings.TrimSpace(r.FormValue("price")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if msg := h.validate(form); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	spec := form.toSpec()

	blobs, err := readBlobs(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	ad, err := h.ads.Create(r.Context(), user, spec, blobs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.inc(func(m *metrics.MetricsManager) prometheus.Counter { return m.AdsCreatedTotal })
	writeJSON(w, http.StatusCreated, adResponse{Response: domain.OK(domain.MsgAdCreated), Ad: h.toAdView(ad)})
}

// UpdateAd handles PATCH /ads/{id}. It accepts multipart forms and JSON bodies.
func (h *Handler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}

	var (
		body  adPatchBody
		blobs []domain.MediaBlob
		err   error
	)
	if isJSON(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}
	} else {
		if err := h.parseForm(w, r); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if body, err = patchFromForm(r); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if blobs, err = readBlobs(r); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}
	body.trim()
	if msg := h.validate(body); msg != "" {
		writeBadRequest(w, msg)
		return
	}

	resp, err := h.ads.Update(r.Context(), user, chi.URLParam(r, "id"), body.toPatch(), blobs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.inc(func(m *metrics.MetricsManager) prometheus.Counter { return m.AdUpdatesTotal })
	writeJSON(w, http.StatusOK, resp)
}

// DeleteAd handles DELETE /ads/{id}.
func (h *Handler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}
	resp, err := h.ads.Remove(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.inc(func(m *metrics.MetricsManager) prometheus.Counter { return m.AdDeletesTotal })
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) parseAdQuery(r *http.Request) (domain.AdQuery, error) {
	values := r.URL.Query()
	rules := h.ads.Rules()
	q := domain.AdQuery{
		Page: 1,
		Sort: domain.ParseAdSort(values.Get("sort")),
		Filter: domain.AdFilter{
			Category: domain.CategoryAll,
			MinPrice: rules.MinPrice,
			MaxPrice: rules.MaxPrice,
			Phrase:   strings.TrimSpace(values.Get("phrase")),
		},
	}
	if raw := values.Get("p"); raw != "" {
		page, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, fmt.Errorf("p must be an integer")
		}
		q.Page = page
	}
	if raw := values.Get("category"); raw != "" {
		q.Filter.Category = raw
	}
	if raw := values.Get("minprice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("minprice must be a number")
		}
		q.Filter.MinPrice = v
	}
	if raw := values.Get("maxprice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("maxprice must be a number")
		}
		q.Filter.MaxPrice = v
	}
	if raw := values.Get("withimages"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("withimages must be true or false")
		}
		q.Filter.RequireImages = v
	}
	return q, nil
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
			return fmt.Errorf("invalid multipart form: %v", err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form: %v", err)
	}
	return nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

// patchFromForm sets only the fields present in the form. filesToRemove may be
// repeated, or sent once as a JSON array.
func patchFromForm(r *http.Request) (adPatchBody, error) {
	var body adPatchBody
	form := r.Form
	if r.MultipartForm != nil {
		form = r.MultipartForm.Value
	}
	str := func(key string) *string {
		if vals, ok := form[key]; ok && len(vals) > 0 {
			v := vals[0]
			return &v
		}
		return nil
	}

	body.Title = str("title")
	body.Category = str("category")
	body.State = str("state")
	body.Description = str("description")
	if s := str("price"); s != nil {
		price := flexPrice(*s)
		body.Price = &price
	}
	if vals, ok := form[formFilesToRemove]; ok {
		keys := domain.KeyList{}
		for _, v := range vals {
			if strings.HasPrefix(strings.TrimSpace(v), "[") {
				var list domain.KeyList
				if err := json.Unmarshal([]byte(v), &list); err != nil {
					return body, fmt.Errorf("filesToRemove is not valid: %v", err)
				}
				keys = append(keys, list...)
				continue
			}
			keys = append(keys, v)
		}
		body.FilesToRemove = keys
	}
	return body, nil
}

func readBlobs(r *http.Request) ([]domain.MediaBlob, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[formFiles]
	blobs := make([]domain.MediaBlob, 0, len(headers))
	for _, fh := range headers {
		blob, err := readBlob(fh)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

func readBlob(fh *multipart.FileHeader) (domain.MediaBlob, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.MediaBlob{}, fmt.Errorf("cannot read file %q: %v", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.MediaBlob{}, fmt.Errorf("cannot read file %q: %v", fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return domain.MediaBlob{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}
