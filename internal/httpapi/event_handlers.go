package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/ledger"
)

type jobView struct {
	events.Job
	Assignments []ledger.Assignment `json:"assignments"`
}

type materialView struct {
	events.Material
	Assignments []ledger.Assignment `json:"assignments"`
}

type eventDetail struct {
	events.Event
	Jobs      []jobView      `json:"jobs"`
	Materials []materialView `json:"materials"`
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := a.opts.Events.List(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "eventID")
	ev, err := a.opts.Events.Get(ctx, id)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	jobs, err := a.opts.Events.Jobs(ctx, id)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	mats, err := a.opts.Events.Materials(ctx, id)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	assigned, err := a.opts.Ledger.EventAssignments(ctx, id)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	byResource := make(map[ledger.Kind]map[string][]ledger.Assignment)
	for _, as := range assigned {
		if byResource[as.Kind] == nil {
			byResource[as.Kind] = make(map[string][]ledger.Assignment)
		}
		byResource[as.Kind][as.ResourceID] = append(byResource[as.Kind][as.ResourceID], as)
	}
	out := eventDetail{Event: ev, Jobs: make([]jobView, 0, len(jobs)), Materials: make([]materialView, 0, len(mats))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, jobView{Job: j, Assignments: orEmpty(byResource[ledger.KindJob][j.ID])})
	}
	for _, m := range mats {
		out.Materials = append(out.Materials, materialView{Material: m, Assignments: orEmpty(byResource[ledger.KindMaterial][m.ID])})
	}
	writeJSON(w, http.StatusOK, out)
}

func orEmpty(as []ledger.Assignment) []ledger.Assignment {
	if as == nil {
		return []ledger.Assignment{}
	}
	return as
}

func (a *API) createEvent(w http.ResponseWriter, r *http.Request) {
	var in events.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := a.opts.Events.Create(r.Context(), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (a *API) updateEvent(w http.ResponseWriter, r *http.Request) {
	var in events.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := a.opts.Events.Update(r.Context(), chi.URLParam(r, "eventID"), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Events.Delete(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var in events.JobInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	j, err := a.opts.Events.CreateJob(r.Context(), chi.URLParam(r, "eventID"), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (a *API) updateJob(w http.ResponseWriter, r *http.Request) {
	var in events.JobInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	j, err := a.opts.Events.UpdateJob(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "jobID"), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (a *API) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Events.DeleteJob(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "jobID")); err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createMaterial(w http.ResponseWriter, r *http.Request) {
	var in events.MaterialInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.opts.Events.CreateMaterial(r.Context(), chi.URLParam(r, "eventID"), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) updateMaterial(w http.ResponseWriter, r *http.Request) {
	var in events.MaterialInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.opts.Events.UpdateMaterial(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "materialID"), in)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Events.DeleteMaterial(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "materialID")); err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
