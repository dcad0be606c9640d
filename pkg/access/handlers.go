package access

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campfirehq/campfire/pkg/community"
	"github.com/campfirehq/campfire/pkg/httputil"
)

// Handlers exposes the evaluators and validator over HTTP. All endpoints
// answer 200 with the decision in the body; the deny/allow split lives in
// the payload, not the status code.
type Handlers struct {
	evaluator *Evaluator
	validator *Validator
}

// NewHandlers creates new access handlers.
func NewHandlers(evaluator *Evaluator, validator *Validator) *Handlers {
	return &Handlers{evaluator: evaluator, validator: validator}
}

// RegisterRoutes registers access check routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/communities/{community_id}/access", h.checkCommunityAccess).Methods("GET")
	router.HandleFunc("/communities/{community_id}/permissions", h.getUserPermissions).Methods("GET")
	router.HandleFunc("/content/{content_type}/{content_id}/access", h.checkContentAccess).Methods("GET")
	router.HandleFunc("/communities/{community_id}/validate", h.validatePermission).Methods("POST")
	router.HandleFunc("/communities/{community_id}/validate-bulk", h.validateBulk).Methods("POST")
}

func (h *Handlers) checkCommunityAccess(w http.ResponseWriter, r *http.Request) {
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	result := h.evaluator.CheckCommunityAccess(r.Context(), communityID, CallerFromRequest(r))
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handlers) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	perms := h.evaluator.GetUserPermissions(r.Context(), communityID, CallerFromRequest(r))
	httputil.WriteJSON(w, http.StatusOK, perms)
}

func (h *Handlers) checkContentAccess(w http.ResponseWriter, r *http.Request) {
	contentID, ok := httputil.ParsePathInt64OrError(w, r, "content_id")
	if !ok {
		return
	}

	contentType := community.ContentType(mux.Vars(r)["content_type"])
	switch contentType {
	case community.ContentLesson, community.ContentPost, community.ContentComment:
	default:
		httputil.WriteBadRequest(w, "invalid content type")
		return
	}

	result := h.evaluator.CheckContentAccess(r.Context(), contentType, contentID, CallerFromRequest(r))
	httputil.WriteJSON(w, http.StatusOK, result)
}

type validateRequest struct {
	Permission        string `json:"permission"`
	RequirePaidAccess bool   `json:"require_paid_access"`
}

func (h *Handlers) validatePermission(w http.ResponseWriter, r *http.Request) {
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	var req validateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteBadRequest(w, "permission is required")
		return
	}

	decision := h.validator.ValidatePermission(
		r.Context(), communityID, CallerFromRequest(r),
		ParsePermission(req.Permission),
		ValidateOptions{RequirePaidAccess: req.RequirePaidAccess},
	)
	httputil.WriteJSON(w, http.StatusOK, decision)
}

type validateBulkRequest struct {
	Operation string  `json:"operation"`
	ItemIDs   []int64 `json:"item_ids"`
}

func (h *Handlers) validateBulk(w http.ResponseWriter, r *http.Request) {
	communityID, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	var req validateBulkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	decision := h.validator.ValidateBulkOperation(
		r.Context(), communityID, CallerFromRequest(r),
		BulkOperation(req.Operation), req.ItemIDs,
	)
	httputil.WriteJSON(w, http.StatusOK, decision)
}
