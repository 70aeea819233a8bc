package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"esupervision/internal/casedirectory"
	checkinmodels "esupervision/internal/checkin/models"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
)

type checkinResponse struct {
	ID            string                       `json:"id"`
	OffenderID    string                       `json:"offenderId"`
	DueDate       string                       `json:"dueDate"`
	Status        string                       `json:"status"`
	Survey        checkinmodels.SurveyResponse `json:"survey,omitempty"`
	AutoIDCheck   string                       `json:"autoIdCheck,omitempty"`
	ManualIDCheck string                       `json:"manualIdCheck,omitempty"`
	SubmittedAt   *time.Time                   `json:"submittedAt,omitempty"`
	ReviewedAt    *time.Time                   `json:"reviewedAt,omitempty"`
}

func toCheckinResponse(c checkinmodels.Checkin) checkinResponse {
	return checkinResponse{
		ID:            c.ID.String(),
		OffenderID:    c.OffenderID.String(),
		DueDate:       c.DueDate.Format(time.DateOnly),
		Status:        string(c.Status),
		Survey:        c.Survey,
		AutoIDCheck:   string(c.AutoIDCheck),
		ManualIDCheck: string(c.ManualIDCheck),
		SubmittedAt:   c.SubmittedAt,
		ReviewedAt:    c.ReviewedAt,
	}
}

func checkinID(r *http.Request) (id.CheckinID, error) {
	return id.ParseCheckinID(chi.URLParam(r, "checkinID"))
}

func (h *Handler) getCheckin(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	checkin, err := h.checkins.Get(r.Context(), cid)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toCheckinResponse(checkin))
}

func (h *Handler) verifyIdentity(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Name        string `json:"name"`
		DateOfBirth string `json:"dateOfBirth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	checkin, err := h.checkins.VerifyIdentity(r.Context(), cid,
		casedirectory.PersonalDetails{Name: req.Name, DateOfBirth: req.DateOfBirth})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toCheckinResponse(checkin))
}

func (h *Handler) videoUploadURL(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	url, err := h.checkins.VideoUploadURL(r.Context(), cid)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"uploadUrl": url})
}

func (h *Handler) snapshotUploadURL(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	url, err := h.checkins.SnapshotUploadURL(r.Context(), cid, req.Index)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"uploadUrl": url})
}

func (h *Handler) submitCheckin(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Survey checkinmodels.SurveyResponse `json:"survey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	checkin, err := h.checkins.Submit(r.Context(), cid, req.Survey)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toCheckinResponse(checkin))
}

func (h *Handler) verifyFace(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Snapshots []int `json:"snapshots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	checkin, err := h.checkins.VerifyFace(r.Context(), cid, req.Snapshots)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toCheckinResponse(checkin))
}

func (h *Handler) reviewCheckin(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		PractitionerID string `json:"practitionerId"`
		Comment        string `json:"comment"`
		ManualIDCheck  string `json:"manualIdCheck"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	checkin, err := h.checkins.Review(r.Context(), cid,
		id.PractitionerID(req.PractitionerID), req.Comment,
		checkinmodels.IdentityCheckResult(req.ManualIDCheck))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toCheckinResponse(checkin))
}

func (h *Handler) annotateCheckin(w http.ResponseWriter, r *http.Request) {
	cid, err := checkinID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		PractitionerID string `json:"practitionerId"`
		Comment        string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	if err := h.checkins.Annotate(r.Context(), cid,
		id.PractitionerID(req.PractitionerID), req.Comment); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
