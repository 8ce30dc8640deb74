package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/observability"
	"github.com/kjstillabower/climate-insights/internal/store"
	"github.com/kjstillabower/climate-insights/internal/validation"
)

// maxBodyBytes bounds request bodies read by the pipeline.
const maxBodyBytes = 1 << 20

// resource names an entity in error messages and metric labels.
type resource struct {
	name   string // "Province"
	label  string // "province"
	plural string // "provinces"
	// unique is the 409 message for a duplicate key.
	unique string
	// inUse is the 409 message when delete is blocked by referencing rows.
	inUse string
}

// endpoint describes one resource operation. serve runs its steps in order:
// parse {id}, bind input, authenticate, confirm existence, run, write.
type endpoint[In any] struct {
	resource resource
	action   string // fetch, create, update or delete
	list     bool
	withID   bool
	mutates  bool
	status   int

	// bind decodes the request into In. It returns validation.Violations or a
	// *queryError on bad input. nil means In is the zero value.
	bind func(r *http.Request) (In, error)
	// exists is called before run on update and delete.
	exists func(ctx context.Context, id int64) error
	run    func(ctx context.Context, id int64, in In) (interface{}, error)
}

func serve[In any](h *Handler, e endpoint[In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var id int64
		if e.withID {
			parsed, ok := parseID(mux.Vars(r)["id"])
			if !ok {
				writeError(w, r, http.StatusBadRequest, "INVALID_ID", "Invalid "+e.resource.label+" id")
				return
			}
			id = parsed
		}

		var in In
		if e.bind != nil {
			v, err := e.bind(r)
			if err != nil {
				h.fail(w, r, e.meta(), err)
				return
			}
			in = v
		}

		if e.mutates {
			principal, ok := h.authn.Authenticate(ctx, r.Header)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized")
				return
			}
			h.requestLogger(r).Debug("authenticated write",
				zap.String("principal_id", principal.ID),
				zap.String("resource", e.resource.label),
				zap.String("action", e.action))
		}

		if e.exists != nil {
			if err := e.exists(ctx, id); err != nil {
				h.fail(w, r, e.meta(), err)
				return
			}
		}

		out, err := e.run(ctx, id, in)
		if err != nil {
			h.fail(w, r, e.meta(), err)
			return
		}
		status := e.status
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, out)
	}
}

// fail maps an error from any pipeline step to its response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, m endpointMeta, err error) {
	var violations validation.Violations
	var qe *queryError
	ce, isConstraint := store.AsConstraint(err)

	switch {
	case errors.As(err, &violations):
		observability.ValidationFailuresTotal.WithLabelValues(m.resource.label).Inc()
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{
			Error:   "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: violations,
		})
	case errors.As(err, &qe):
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", qe.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", m.resource.name+" not found")
	case isConstraint:
		writeError(w, r, http.StatusConflict, "CONFLICT", conflictMessage(m.resource, m.action, ce))
	default:
		subject := m.resource.label
		if m.list {
			subject = m.resource.plural
		}
		message := fmt.Sprintf("Failed to %s %s", m.action, subject)
		h.requestLogger(r).Error(message, zap.Error(err))
		body := errorBody{Error: message, Code: "INTERNAL"}
		if h.debugErrors {
			body.Detail = err.Error()
		}
		writeErrorBody(w, r, http.StatusInternalServerError, body)
	}
}

func conflictMessage(res resource, action string, ce *store.ConstraintError) string {
	switch {
	case ce.Kind == store.KindUnique && res.unique != "":
		return res.unique
	case ce.Kind == store.KindForeignKey && action == "delete" && res.inUse != "":
		return res.inUse
	case ce.Kind == store.KindForeignKey:
		return "Province does not exist"
	}
	return res.name + " conflicts with existing data"
}

// endpointMeta is the non-generic part of an endpoint used for error mapping.
type endpointMeta struct {
	resource resource
	action   string
	list     bool
}

func (e endpoint[In]) meta() endpointMeta {
	return endpointMeta{resource: e.resource, action: e.action, list: e.list}
}

// parseID accepts positive base-10 integers only.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryError reports an unusable query parameter.
type queryError struct {
	param string
}

func (e *queryError) Error() string {
	return "Invalid query parameter: " + e.param
}

// body adapts a validation schema into a bind step.
func body[T any](schema func(raw []byte) (T, validation.Violations)) func(r *http.Request) (T, error) {
	return func(r *http.Request) (T, error) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			var zero T
			return zero, validation.Field("body", "could not read request body")
		}
		v, violations := schema(raw)
		if len(violations) > 0 {
			return v, violations
		}
		return v, nil
	}
}

// queryInt reads a non-negative integer parameter. ok is false when absent.
func queryInt(q url.Values, name string) (n int, ok bool, err error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, convErr := strconv.Atoi(raw)
	if convErr != nil || n < 0 {
		return 0, false, &queryError{param: name}
	}
	return n, true, nil
}

// page reads limit and offset. The limit defaults to and is clamped at maxPageSize;
// limit=0 means the default.
func (h *Handler) page(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	limit, _, err := queryInt(q, "limit")
	if err != nil {
		return models.Page{}, err
	}
	offset, _, err := queryInt(q, "offset")
	if err != nil {
		return models.Page{}, err
	}
	if limit == 0 || limit > h.maxPageSize {
		limit = h.maxPageSize
	}
	return models.Page{Limit: limit, Offset: offset}, nil
}

// provinceFilter reads the optional provinceId parameter.
func provinceFilter(q url.Values) (*int64, error) {
	raw := q.Get("provinceId")
	if raw == "" {
		return nil, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return nil, &queryError{param: "provinceId"}
	}
	return &id, nil
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
