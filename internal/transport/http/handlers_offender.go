package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	offendermodels "esupervision/internal/offender/models"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
)

type offenderResponse struct {
	ID             string `json:"id"`
	CaseReference  string `json:"caseReference"`
	PractitionerID string `json:"practitionerId"`
	Status         string `json:"status"`
	FirstCheckin   string `json:"firstCheckin"`
	IntervalDays   int    `json:"intervalDays"`
}

func toOffenderResponse(o offendermodels.Offender) offenderResponse {
	return offenderResponse{
		ID:             o.ID.String(),
		CaseReference:  o.CaseReference.String(),
		PractitionerID: string(o.PractitionerID),
		Status:         string(o.Status),
		FirstCheckin:   o.FirstCheckin.Format(time.DateOnly),
		IntervalDays:   o.IntervalDays,
	}
}

func (h *Handler) registerOffender(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaseReference  string `json:"caseReference"`
		PractitionerID string `json:"practitionerId"`
		FirstCheckin   string `json:"firstCheckin"`
		IntervalDays   int    `json:"intervalDays"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	first, err := time.Parse(time.DateOnly, req.FirstCheckin)
	if err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "firstCheckin must be a YYYY-MM-DD date"))
		return
	}

	offender, err := h.offenders.Register(r.Context(),
		id.CaseReference(req.CaseReference), id.PractitionerID(req.PractitionerID), first, req.IntervalDays)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, toOffenderResponse(offender))
}

func (h *Handler) getOffender(w http.ResponseWriter, r *http.Request) {
	offenderID, err := id.ParseOffenderID(chi.URLParam(r, "offenderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	offender, err := h.offenders.Get(r.Context(), offenderID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toOffenderResponse(offender))
}

func (h *Handler) photoUploadURL(w http.ResponseWriter, r *http.Request) {
	offenderID, err := id.ParseOffenderID(chi.URLParam(r, "offenderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	url, err := h.offenders.PhotoUploadURL(r.Context(), offenderID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"uploadUrl": url})
}

func (h *Handler) completeSetup(w http.ResponseWriter, r *http.Request) {
	h.offenderTransition(w, r, h.offenders.CompleteSetup)
}

func (h *Handler) deactivateOffender(w http.ResponseWriter, r *http.Request) {
	h.offenderTransition(w, r, h.offenders.Deactivate)
}

func (h *Handler) reactivateOffender(w http.ResponseWriter, r *http.Request) {
	h.offenderTransition(w, r, h.offenders.Reactivate)
}

func (h *Handler) offenderTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, offenderID id.OffenderID) (offendermodels.Offender, error)) {
	offenderID, err := id.ParseOffenderID(chi.URLParam(r, "offenderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	offender, err := op(r.Context(), offenderID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toOffenderResponse(offender))
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	offenderID, err := id.ParseOffenderID(chi.URLParam(r, "offenderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		FirstCheckin string `json:"firstCheckin"`
		IntervalDays int    `json:"intervalDays"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	first, err := time.Parse(time.DateOnly, req.FirstCheckin)
	if err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "firstCheckin must be a YYYY-MM-DD date"))
		return
	}

	offender, err := h.offenders.UpdateSchedule(r.Context(), offenderID, first, req.IntervalDays)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, toOffenderResponse(offender))
}

func (h *Handler) createCheckin(w http.ResponseWriter, r *http.Request) {
	offenderID, err := id.ParseOffenderID(chi.URLParam(r, "offenderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		DueDate string `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	due, err := time.Parse(time.DateOnly, req.DueDate)
	if err != nil {
		respondError(w, dErrors.New(dErrors.CodeValidation, "dueDate must be a YYYY-MM-DD date"))
		return
	}

	checkin, err := h.creator.CreateForDate(r.Context(), offenderID, due)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, toCheckinResponse(checkin))
}
