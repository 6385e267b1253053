package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/course-entitlements/internal/app"
	"github.com/cimillas/course-entitlements/internal/domain"
)

// EntitlementService is the subset of app.EntitlementService the handlers use.
type EntitlementService interface {
	CreateEntitlement(ctx context.Context, in app.CreateEntitlementInput) (domain.Entitlement, error)
	Eligibility(ctx context.Context, id string) (app.Eligibility, error)
	EvaluateAndPersistExpiration(ctx context.Context, id string) (*time.Time, error)
	Redeem(ctx context.Context, id, enrollmentID string) (domain.Entitlement, error)
	Regain(ctx context.Context, id string) (domain.Entitlement, error)
	Refund(ctx context.Context, id string) error
}

// HandleEntitlements serves POST /entitlements.
func HandleEntitlements(svc EntitlementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createEntitlementRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		ent, err := svc.CreateEntitlement(r.Context(), app.CreateEntitlementInput{
			UserID:      req.UserID,
			CourseID:    req.CourseID,
			Mode:        req.Mode,
			OrderNumber: req.OrderNumber,
			PolicyID:    req.PolicyID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntitlementResponse(ent))
	}
}

// HandleEntitlement serves the /entitlements/{id} subtree.
func HandleEntitlement(svc EntitlementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseEntitlementPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if action == "" {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			elig, err := svc.Eligibility(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toEligibilityResponse(elig))
			return
		}

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "expiration":
			at, err := svc.EvaluateAndPersistExpiration(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, expirationResponse{ID: id, ExpiredAt: at})
		case "redeem":
			var req redeemRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil || req.EnrollmentID == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "enrollment_id is required")
				return
			}
			ent, err := svc.Redeem(r.Context(), id, req.EnrollmentID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toEntitlementResponse(ent))
		case "regain":
			ent, err := svc.Regain(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toEntitlementResponse(ent))
		case "refund":
			if err := svc.Refund(r.Context(), id); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

// parseEntitlementPath splits /entitlements/{id}[/{action}].
func parseEntitlementPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "entitlements" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		if parts[2] == "" {
			return "", "", false
		}
		action = parts[2]
	}
	return parts[1], action, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type createEntitlementRequest struct {
	UserID      string  `json:"user_id"`
	CourseID    string  `json:"course_id"`
	Mode        string  `json:"mode"`
	OrderNumber *string `json:"order_number"`
	PolicyID    string  `json:"policy_id"`
}

type redeemRequest struct {
	EnrollmentID string `json:"enrollment_id"`
}

type entitlementResponse struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	CourseID     string     `json:"course_id"`
	Mode         string     `json:"mode"`
	OrderNumber  *string    `json:"order_number"`
	EnrollmentID *string    `json:"enrollment_id"`
	PolicyID     string     `json:"policy_id"`
	ExpiredAt    *time.Time `json:"expired_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toEntitlementResponse(e domain.Entitlement) entitlementResponse {
	return entitlementResponse{
		ID:           e.ID,
		UserID:       e.UserID,
		CourseID:     e.CourseID,
		Mode:         e.Mode,
		OrderNumber:  e.OrderNumber,
		EnrollmentID: e.EnrollmentID,
		PolicyID:     e.PolicyID,
		ExpiredAt:    e.ExpiredAt,
		CreatedAt:    e.CreatedAt,
	}
}

type eligibilityResponse struct {
	ID                  string     `json:"id"`
	Redeemed            bool       `json:"redeemed"`
	Redeemable          bool       `json:"redeemable"`
	Refundable          bool       `json:"refundable"`
	Regainable          bool       `json:"regainable"`
	DaysUntilExpiration int        `json:"days_until_expiration"`
	ExpiredAt           *time.Time `json:"expired_at"`
}

func toEligibilityResponse(e app.Eligibility) eligibilityResponse {
	return eligibilityResponse{
		ID:                  e.EntitlementID,
		Redeemed:            e.Redeemed,
		Redeemable:          e.Redeemable,
		Refundable:          e.Refundable,
		Regainable:          e.Regainable,
		DaysUntilExpiration: e.DaysUntilExpiration,
		ExpiredAt:           e.ExpiredAt,
	}
}

type expirationResponse struct {
	ID        string     `json:"id"`
	ExpiredAt *time.Time `json:"expired_at"`
}
