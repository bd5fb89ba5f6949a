package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/domain"
)

func TestRespondAdminError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.ErrAuctionNotFound, http.StatusNotFound, "not_found"},
		{"conflict", domain.ErrAlreadySettled, http.StatusConflict, "conflict"},
		{"cancel with bids", domain.ErrAuctionHasBids, http.StatusConflict, "conflict"},
		{"external", domain.ErrPaymentFailed, http.StatusBadGateway, "external_failure"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"wrapped", fmt.Errorf("retry: %w", domain.ErrSettlementNotFound), http.StatusNotFound, "not_found"},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)

			respondAdminError(c, tc.err)

			if rr.Code != tc.status {
				t.Errorf("status = %d, want %d", rr.Code, tc.status)
			}
			var body map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body["code"] != tc.code {
				t.Errorf("code = %v, want %q", body["code"], tc.code)
			}
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
		})
	}
}

// Operators see the real failure, not a scrubbed message.
func TestRespondAdminError_KeepsInternalMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)

	respondAdminError(c, errors.New("pq: deadlock detected"))

	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["error"] != "pq: deadlock detected" {
		t.Errorf("error = %v, want the underlying message", body["error"])
	}
}
