package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openedu/ratings/internal/domain"
	"github.com/openedu/ratings/internal/permission"
	"github.com/openedu/ratings/internal/repository"
	"github.com/openedu/ratings/internal/service"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Package-level validator instance for request payload validation.
var validate = validator.New()

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type submitRequest struct {
	Component   string `json:"component" validate:"required"`
	RatingArea  string `json:"ratingArea" validate:"required"`
	ItemID      int64  `json:"itemId" validate:"required"`
	ScaleID     int    `json:"scaleId"`
	Rating      int    `json:"rating"`
	RatedUserID int64  `json:"ratedUserId"`
	Aggregation string `json:"aggregation" validate:"required"`
}

type submitResponse struct {
	Success   bool     `json:"success"`
	ItemID    int64    `json:"itemId"`
	Aggregate *float64 `json:"aggregate,omitempty"`
	Count     *int64   `json:"count,omitempty"`
	Display   string   `json:"display,omitempty"`
}

type itemRatingResponse struct {
	UserID       int64     `json:"userId"`
	UserName     string    `json:"userName"`
	Rating       int       `json:"rating"`
	TimeModified time.Time `json:"timeModified"`
}

type userGradeResponse struct {
	UserID   int64   `json:"userId"`
	RawGrade float64 `json:"rawGrade"`
}

type ratingResponse struct {
	ID           int64     `json:"id"`
	RatingArea   string    `json:"ratingArea"`
	ItemID       int64     `json:"itemId"`
	UserID       int64     `json:"userId"`
	Rating       int       `json:"rating"`
	TimeCreated  time.Time `json:"timeCreated"`
	TimeModified time.Time `json:"timeModified"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	contextID, err := int64Param(r, "contextID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	claims := claimsFrom(r.Context())

	var req submitRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Missing or invalid submission fields")
		return
	}
	aggregation, ok := domain.ParseAggregation(req.Aggregation)
	if !ok {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown aggregation method")
		return
	}
	if req.ScaleID == 0 {
		req.ScaleID = domain.DefaultScale
	}

	if !(ClaimsChecker{}).HasCapability(r.Context(), claims.UserID, contextID, permission.CapRate) {
		s.respondError(w, http.StatusForbidden, "PERMISSION_DENIED", service.ErrRatePermissionDenied.Error())
		return
	}

	result, err := s.svc.Submit(r.Context(), service.SubmitRequest{
		ContextID:   contextID,
		Component:   req.Component,
		RatingArea:  req.RatingArea,
		ItemID:      req.ItemID,
		ScaleID:     req.ScaleID,
		Rating:      req.Rating,
		RatedUserID: req.RatedUserID,
		ActorID:     claims.UserID,
		Aggregation: aggregation,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRatePermissionDenied):
			s.respondError(w, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
		case errors.Is(err, service.ErrRatingInvalid):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		default:
			s.logger.Error("submit rating failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process rating")
		}
		return
	}

	resp := submitResponse{Success: true, ItemID: result.ItemID}
	if result.HasAggregate {
		resp.Aggregate = result.Aggregate
		resp.Count = &result.Count
		resp.Display = result.Display
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListItemRatings(w http.ResponseWriter, r *http.Request) {
	contextID, err := int64Param(r, "contextID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	itemID, err := int64Param(r, "itemID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	comp := r.URL.Query().Get("component")
	ratingArea := r.URL.Query().Get("ratingArea")
	if comp == "" || ratingArea == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "component and ratingArea are required")
		return
	}
	scaleID, _ := strconv.Atoi(r.URL.Query().Get("scaleId"))

	var sort repository.ListSort
	switch r.URL.Query().Get("sort") {
	case "name":
		sort = repository.SortByName
	case "rating":
		sort = repository.SortByValue
	default:
		sort = repository.SortByTime
	}

	claims := claimsFrom(r.Context())
	rows, err := s.svc.ListForItem(r.Context(), contextID, comp, ratingArea, itemID, scaleID, claims.UserID, sort)
	if err != nil {
		if errors.Is(err, service.ErrNoViewRate) {
			s.respondError(w, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
			return
		}
		s.logger.Error("list item ratings failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list ratings")
		return
	}

	items := make([]itemRatingResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, itemRatingResponse{
			UserID:       row.UserID,
			UserName:     row.UserName,
			Rating:       row.Value,
			TimeModified: row.TimeModified,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	contextID, err := int64Param(r, "contextID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	comp := r.URL.Query().Get("component")
	ratingArea := r.URL.Query().Get("ratingArea")
	if comp == "" || ratingArea == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "component and ratingArea are required")
		return
	}
	aggregation, ok := domain.ParseAggregation(r.URL.Query().Get("aggregation"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unknown aggregation method")
		return
	}
	scaleID, _ := strconv.Atoi(r.URL.Query().Get("scaleId"))
	if scaleID == 0 {
		scaleID = domain.DefaultScale
	}
	targetUserID, _ := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)

	grades, err := s.svc.Grades(r.Context(), service.GradesQuery{
		ContextID:    contextID,
		Component:    comp,
		RatingArea:   ratingArea,
		ScaleID:      scaleID,
		Aggregation:  aggregation,
		TargetUserID: targetUserID,
	})
	if err != nil {
		s.logger.Error("grade computation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute grades")
		return
	}

	items := make([]userGradeResponse, 0, len(grades))
	for _, grade := range grades {
		items = append(items, userGradeResponse{UserID: grade.UserID, RawGrade: grade.RawGrade})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handlePurgeRatings(w http.ResponseWriter, r *http.Request) {
	contextID, err := int64Param(r, "contextID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	claims := claimsFrom(r.Context())
	if !(ClaimsChecker{}).HasCapability(r.Context(), claims.UserID, contextID, permission.CapManage) {
		s.respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "Missing manage capability")
		return
	}

	filter := repository.DeleteFilter{ContextID: contextID}
	query := r.URL.Query()
	if v := query.Get("itemId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid itemId")
			return
		}
		filter.ItemID = &id
	}
	if v := query.Get("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid userId")
			return
		}
		filter.UserID = &id
	}
	if v := query.Get("ratingId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid ratingId")
			return
		}
		filter.RatingID = &id
	}
	if v := query.Get("component"); v != "" {
		filter.Component = &v
	}
	if v := query.Get("ratingArea"); v != "" {
		filter.RatingArea = &v
	}

	if err := s.svc.Purge(r.Context(), filter); err != nil {
		s.logger.Error("purge ratings failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to purge ratings")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRatingsSince(w http.ResponseWriter, r *http.Request) {
	contextID, err := int64Param(r, "contextID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	comp := r.URL.Query().Get("component")
	if comp == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "component is required")
		return
	}
	sinceSecs, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid since timestamp")
		return
	}

	claims := claimsFrom(r.Context())
	rows, err := s.svc.RatingsSince(r.Context(), contextID, comp, time.Unix(sinceSecs, 0), claims.UserID)
	if err != nil {
		s.logger.Error("ratings since failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list ratings")
		return
	}

	items := make([]ratingResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, ratingResponse{
			ID:           row.ID,
			RatingArea:   row.RatingArea,
			ItemID:       row.ItemID,
			UserID:       row.UserID,
			Rating:       row.Value,
			TimeCreated:  row.TimeCreated,
			TimeModified: row.TimeModified,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Code: code, Message: message})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return value, nil
}
