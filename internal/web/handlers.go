package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/shape"
)

// resource handles the CRUD surface of one model
type resource struct {
	server *Server
	def    *model.Definition
	shaper *shape.Shaper
}

func (res *resource) create(w http.ResponseWriter, r *http.Request) {
	data, ok := res.decodeBody(w, r)
	if !ok {
		return
	}

	record, err := res.server.engine.Create(r.Context(), res.def.Name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.shaper.Shape(record))
}

func (res *resource) list(w http.ResponseWriter, r *http.Request) {
	plan, err := res.server.builder.Build(res.def, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := res.server.engine.List(r.Context(), res.def.Name, plan)
	if err != nil {
		writeError(w, err)
		return
	}
	result.Records = res.shaper.ShapeAll(result.Records)
	writeJSON(w, http.StatusOK, newListEnvelope(result))
}

func (res *resource) show(w http.ResponseWriter, r *http.Request) {
	id, ok := res.recordID(w, r)
	if !ok {
		return
	}

	record, err := res.server.engine.Find(r.Context(), res.def.Name, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.shaper.Shape(record))
}

func (res *resource) update(w http.ResponseWriter, r *http.Request) {
	id, ok := res.recordID(w, r)
	if !ok {
		return
	}
	data, ok := res.decodeBody(w, r)
	if !ok {
		return
	}

	record, err := res.server.engine.Update(r.Context(), res.def.Name, id, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.shaper.Shape(record))
}

func (res *resource) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := res.recordID(w, r)
	if !ok {
		return
	}

	if err := res.server.engine.Delete(r.Context(), res.def.Name, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *resource) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := res.recordID(w, r)
	if !ok {
		return
	}

	record, err := res.server.engine.Restore(r.Context(), res.def.Name, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.shaper.Shape(record))
}

func (res *resource) forceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := res.recordID(w, r)
	if !ok {
		return
	}

	if err := res.server.engine.ForceDelete(r.Context(), res.def.Name, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordID parses the {id} path parameter
func (res *resource) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid record id"})
		return 0, false
	}
	return id, true
}

// decodeBody decodes the JSON body and strips fields clients may not
// write
func (res *resource) decodeBody(w http.ResponseWriter, r *http.Request) (model.Record, bool) {
	var data model.Record
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body"})
		return nil, false
	}

	for i := range res.def.Fields {
		if res.def.Fields[i].WritePrivate {
			delete(data, res.def.Fields[i].Name)
		}
	}
	// System-managed keys are never writable
	for _, key := range []string{"id", "uuid", "createdAt", "updatedAt", "deletedAt", "createdBy", "updatedBy", "deletedBy"} {
		delete(data, key)
	}
	return data, true
}
