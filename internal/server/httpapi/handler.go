package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/server/models"
	"github.com/avelats/polycat/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// --- payloads ---

type contentPayload struct {
	Name         string     `json:"name"`
	Summary      *string    `json:"summary,omitempty"`
	CoverImage   *string    `json:"cover_image,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	FoundingDate *time.Time `json:"founding_date,omitempty"`
}

func (p contentPayload) toModel() models.Content {
	return models.Content{
		Name:         p.Name,
		Summary:      p.Summary,
		CoverImage:   p.CoverImage,
		ReleaseDate:  p.ReleaseDate,
		FoundingDate: p.FoundingDate,
	}
}

type scopePayload struct {
	AgencyID *string `json:"agency_id,omitempty"`
	GroupID  *string `json:"group_id,omitempty"`
	TalentID *string `json:"talent_id,omitempty"`
}

type createDraftRequest struct {
	TranslationSetID string         `json:"translation_set_id,omitempty"`
	PublishedID      *string        `json:"published_id,omitempty"`
	Language         string         `json:"language"`
	Kind             string         `json:"kind"`
	Scope            scopePayload   `json:"scope"`
	Content          contentPayload `json:"content"`
}

// mergeRequest distinguishes absent fields from explicit nulls: an absent
// key leaves the field unchanged, a null clears it. Raw messages carry that
// three-way distinction through decoding.
type mergeRequest struct {
	Name         json.RawMessage `json:"name"`
	Summary      json.RawMessage `json:"summary"`
	CoverImage   json.RawMessage `json:"cover_image"`
	ReleaseDate  json.RawMessage `json:"release_date"`
	FoundingDate json.RawMessage `json:"founding_date"`
}

func (req mergeRequest) toEdits() (models.ContentEdits, error) {
	var edits models.ContentEdits

	if req.Name != nil {
		var name string
		if err := json.Unmarshal(req.Name, &name); err != nil || name == "" {
			return edits, fmt.Errorf("%w: name must be a non-empty string", common.ErrValidation)
		}
		edits.Name = models.SetTo(name)
	}

	var err error
	if edits.Summary, err = optStringEdit(req.Summary, "summary"); err != nil {
		return edits, err
	}
	if edits.CoverImage, err = optStringEdit(req.CoverImage, "cover_image"); err != nil {
		return edits, err
	}
	if edits.ReleaseDate, err = optTimeEdit(req.ReleaseDate, "release_date"); err != nil {
		return edits, err
	}
	if edits.FoundingDate, err = optTimeEdit(req.FoundingDate, "founding_date"); err != nil {
		return edits, err
	}
	return edits, nil
}

var jsonNull = []byte("null")

func optStringEdit(raw json.RawMessage, field string) (models.Edit[*string], error) {
	if raw == nil {
		return models.Unchanged[*string](), nil
	}
	if bytes.Equal(raw, jsonNull) {
		return models.SetTo[*string](nil), nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.Edit[*string]{}, fmt.Errorf("%w: %s must be a string or null", common.ErrValidation, field)
	}
	return models.SetTo(&v), nil
}

func optTimeEdit(raw json.RawMessage, field string) (models.Edit[*time.Time], error) {
	if raw == nil {
		return models.Unchanged[*time.Time](), nil
	}
	if bytes.Equal(raw, jsonNull) {
		return models.SetTo[*time.Time](nil), nil
	}
	var v time.Time
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.Edit[*time.Time]{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp or null", common.ErrValidation, field)
	}
	return models.SetTo(&v), nil
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type rollbackRequest struct {
	TargetVersion int64 `json:"target_version"`
}

// --- responses ---

type draftResponse struct {
	ID               string         `json:"id"`
	PublishedID      *string        `json:"published_id,omitempty"`
	TranslationSetID string         `json:"translation_set_id"`
	Language         string         `json:"language"`
	Kind             string         `json:"kind"`
	Scope            scopePayload   `json:"scope"`
	Content          contentPayload `json:"content"`
	Status           string         `json:"status"`
	SubmitterID      string         `json:"submitter_id"`
	MergerID         *string        `json:"merger_id,omitempty"`
	MergedAt         *time.Time     `json:"merged_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func toDraftResponse(d *models.Draft) draftResponse {
	return draftResponse{
		ID:               d.ID,
		PublishedID:      d.PublishedID,
		TranslationSetID: d.TranslationSetID,
		Language:         d.Language,
		Kind:             string(d.Kind),
		Scope:            scopePayload{AgencyID: d.Scope.AgencyID, GroupID: d.Scope.GroupID, TalentID: d.Scope.TalentID},
		Content:          toContentPayload(d.Content),
		Status:           string(d.Status),
		SubmitterID:      d.SubmitterID,
		MergerID:         d.MergerID,
		MergedAt:         d.MergedAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type variantResponse struct {
	ID               string         `json:"id"`
	TranslationSetID string         `json:"translation_set_id"`
	Language         string         `json:"language"`
	Kind             string         `json:"kind"`
	Scope            scopePayload   `json:"scope"`
	Content          contentPayload `json:"content"`
	Version          int64          `json:"version"`
	PublishedAt      time.Time      `json:"published_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func toVariantResponse(v *models.Variant) variantResponse {
	return variantResponse{
		ID:               v.ID,
		TranslationSetID: v.TranslationSetID,
		Language:         v.Language,
		Kind:             string(v.Kind),
		Scope:            scopePayload{AgencyID: v.Scope.AgencyID, GroupID: v.Scope.GroupID, TalentID: v.Scope.TalentID},
		Content:          toContentPayload(v.Content),
		Version:          v.Version,
		PublishedAt:      v.PublishedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

func toContentPayload(c models.Content) contentPayload {
	return contentPayload{
		Name:         c.Name,
		Summary:      c.Summary,
		CoverImage:   c.CoverImage,
		ReleaseDate:  c.ReleaseDate,
		FoundingDate: c.FoundingDate,
	}
}

type historyResponse struct {
	ID               string     `json:"id"`
	TranslationSetID string     `json:"translation_set_id"`
	Action           string     `json:"action"`
	EditorID         string     `json:"editor_id"`
	SubmitterID      *string    `json:"submitter_id,omitempty"`
	PublishedID      *string    `json:"published_id,omitempty"`
	DraftID          *string    `json:"draft_id,omitempty"`
	FromStatus       *string    `json:"from_status,omitempty"`
	ToStatus         *string    `json:"to_status,omitempty"`
	FromVersion      *int64     `json:"from_version,omitempty"`
	ToVersion        *int64     `json:"to_version,omitempty"`
	Reason           *string    `json:"reason,omitempty"`
	SubjectName      string     `json:"subject_name"`
	RecordedAt       time.Time  `json:"recorded_at"`
}

func toHistoryResponse(rec *models.HistoryRecord) historyResponse {
	return historyResponse{
		ID:               rec.ID,
		TranslationSetID: rec.TranslationSetID,
		Action:           string(rec.Action),
		EditorID:         rec.EditorID,
		SubmitterID:      rec.SubmitterID,
		PublishedID:      rec.PublishedID,
		DraftID:          rec.DraftID,
		FromStatus:       statusString(rec.FromStatus),
		ToStatus:         statusString(rec.ToStatus),
		FromVersion:      rec.FromVersion,
		ToVersion:        rec.ToVersion,
		Reason:           rec.Reason,
		SubjectName:      rec.SubjectName,
		RecordedAt:       rec.RecordedAt,
	}
}

func statusString(s *models.DraftStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

type snapshotResponse struct {
	ID               string         `json:"id"`
	EntityID         string         `json:"entity_id"`
	TranslationSetID string         `json:"translation_set_id"`
	Language         string         `json:"language"`
	Content          contentPayload `json:"content"`
	Version          int64          `json:"version"`
	CapturedAt       time.Time      `json:"captured_at"`
}

func toSnapshotResponse(s *models.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:               s.ID,
		EntityID:         s.EntityID,
		TranslationSetID: s.TranslationSetID,
		Language:         s.Language,
		Content:          toContentPayload(s.Content),
		Version:          s.Version,
		CapturedAt:       s.CapturedAt,
	}
}

// --- handlers ---

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	p := principalFrom(r.Context())
	d, err := s.drafts.Create(r.Context(), p, services.NewDraft{
		TranslationSetID: req.TranslationSetID,
		PublishedID:      req.PublishedID,
		Language:         req.Language,
		Kind:             models.Kind(req.Kind),
		Scope:            models.Scope{AgencyID: req.Scope.AgencyID, GroupID: req.Scope.GroupID, TalentID: req.Scope.TalentID},
		Content:          req.Content.toModel(),
		SubmitterID:      p.ID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toDraftResponse(d))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDraftResponse(d))
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.drafts.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMergeDraft(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}
	edits, err := req.toEdits()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.drafts.Merge(r.Context(), chi.URLParam(r, "id"), edits, principalFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDraftResponse(d))
}

func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Submit(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDraftResponse(d))
}

func (s *Server) handleApproveDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Approve(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDraftResponse(d))
}

func (s *Server) handleRejectDraft(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	d, err := s.drafts.Reject(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDraftResponse(d))
}

func (s *Server) handlePublishDraft(w http.ResponseWriter, r *http.Request) {
	v, err := s.drafts.Publish(r.Context(), chi.URLParam(r, "id"), principalFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toVariantResponse(v))
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	ds, err := s.drafts.ListByTranslationSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]draftResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDraftResponse(d))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListVariants(w http.ResponseWriter, r *http.Request) {
	vs, err := s.catalog.ListVariants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]variantResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVariantResponse(v))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.catalog.SetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]historyResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toHistoryResponse(rec))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	v, err := s.catalog.GetVariant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toVariantResponse(v))
}

func (s *Server) handleVariantHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.catalog.VariantHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]historyResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toHistoryResponse(rec))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVariantSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.catalog.VariantSnapshots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotResponse(snap))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	vs, err := s.rollback.Rollback(r.Context(), chi.URLParam(r, "id"), req.TargetVersion, principalFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]variantResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVariantResponse(v))
	}
	s.writeJSON(w, http.StatusOK, out)
}
