package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/course-entitlements/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeUserRequired        = "user_id_required"
	codeCourseRequired      = "course_id_required"
	codeEntitlementNotFound = "entitlement_not_found"
	codeEnrollmentNotFound  = "enrollment_not_found"
	codePolicyNotFound      = "policy_not_found"
	codeCourseNotFound      = "course_not_found"
	codeEntitlementExists   = "entitlement_exists"
	codeAlreadyRedeemed     = "already_redeemed"
	codeNotRedeemed         = "not_redeemed"
	codeNotRedeemable       = "not_redeemable"
	codeNotRefundable       = "not_refundable"
	codeNotRegainable       = "not_regainable"
	codeExpired             = "entitlement_expired"
	codeEnrollmentMismatch  = "enrollment_user_mismatch"
	codeEnrollmentLinked    = "enrollment_already_linked"
	codeEnrollmentInactive  = "enrollment_inactive"
	codeForbidden           = "forbidden"
	codeUnavailable         = "unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrUserRequired, http.StatusBadRequest, codeUserRequired},
	{domain.ErrCourseRequired, http.StatusBadRequest, codeCourseRequired},
	{domain.ErrEntitlementNotFound, http.StatusNotFound, codeEntitlementNotFound},
	{domain.ErrEnrollmentNotFound, http.StatusNotFound, codeEnrollmentNotFound},
	{domain.ErrPolicyNotFound, http.StatusNotFound, codePolicyNotFound},
	{domain.ErrCourseNotFound, http.StatusNotFound, codeCourseNotFound},
	{domain.ErrEntitlementExists, http.StatusConflict, codeEntitlementExists},
	{domain.ErrAlreadyRedeemed, http.StatusConflict, codeAlreadyRedeemed},
	{domain.ErrNotRedeemed, http.StatusConflict, codeNotRedeemed},
	{domain.ErrNotRedeemable, http.StatusConflict, codeNotRedeemable},
	{domain.ErrNotRefundable, http.StatusConflict, codeNotRefundable},
	{domain.ErrNotRegainable, http.StatusConflict, codeNotRegainable},
	{domain.ErrEntitlementExpired, http.StatusConflict, codeExpired},
	{domain.ErrEnrollmentUserMismatch, http.StatusForbidden, codeEnrollmentMismatch},
	{domain.ErrEnrollmentLinked, http.StatusConflict, codeEnrollmentLinked},
	{domain.ErrEnrollmentInactive, http.StatusConflict, codeEnrollmentInactive},
}

// writeDomainError maps service errors to a status and code. Anything
// unrecognized is reported as an internal error without details.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			writeError(w, de.status, de.code, de.err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
