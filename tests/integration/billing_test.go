//go:build integration

package integration

import (
	"net/http"
	"testing"
)

type validateRequest struct {
	Code string `json:"discountCode"`
}

type checkoutRequest struct {
	DiscountCode string `json:"discountCode,omitempty"`
}

func TestValidateDiscountCode_RequiresAuth(t *testing.T) {
	resp := doPost(t, "/validate-discount-code", validateRequest{Code: "PROSPECTINGGOAT12"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("expected an error message")
	}
}

func TestValidateDiscountCode_Valid(t *testing.T) {
	resp := doPostWithAuth(t, "/validate-discount-code",
		validateRequest{Code: "  prospectinggoat12  "}, seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateResponse](t, resp)
	if !body.Valid {
		t.Fatalf("expected valid code, got message %q", body.Message)
	}
	if body.Code != "PROSPECTINGGOAT12" {
		t.Errorf("code: got %q, want PROSPECTINGGOAT12", body.Code)
	}
	if body.Percentage != 70 {
		t.Errorf("percentage: got %d, want 70", body.Percentage)
	}
	if body.Duration != "once" {
		t.Errorf("duration: got %q, want once", body.Duration)
	}
}

func TestValidateDiscountCode_Unknown(t *testing.T) {
	resp := doPostWithAuth(t, "/validate-discount-code",
		validateRequest{Code: "DOESNOTEXIST99"}, seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateResponse](t, resp)
	if body.Valid {
		t.Error("unknown code must not validate")
	}
	if body.Message == "" {
		t.Error("expected a rejection message")
	}
}

func TestValidateDiscountCode_Malformed(t *testing.T) {
	resp := doPostWithAuth(t, "/validate-discount-code",
		validateRequest{Code: "a!"}, seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateResponse](t, resp)
	if body.Valid {
		t.Error("malformed code must not validate")
	}
}

func TestValidateDiscountCode_MissingField(t *testing.T) {
	resp := doPostWithAuth(t, "/validate-discount-code", struct{}{}, seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubscriptionStatus_FreshUser(t *testing.T) {
	resp := doGetWithAuth(t, "/subscription-status", seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[statusResponse](t, resp)
	if body.Tier != "free" {
		t.Errorf("tier: got %q, want free", body.Tier)
	}
	if body.Status != "none" {
		t.Errorf("status: got %q, want none", body.Status)
	}
	if body.IsActive {
		t.Error("fresh user must not be active")
	}
}

func TestSubscriptionStatus_UnknownUser(t *testing.T) {
	resp := doGetWithAuth(t, "/subscription-status", signToken(t, ghostSubject, "ghost@test.dev"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelSubscription_NoneActive(t *testing.T) {
	resp := doPostWithAuth(t, "/cancel-subscription", struct{}{}, seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "No active subscription found" {
		t.Errorf("message: got %q", body.Message)
	}
}

func TestCreateCheckoutSession_RejectedCode(t *testing.T) {
	// The discount is evaluated before the payment provider is contacted,
	// so a rejected code fails fast even with a dummy Stripe key.
	resp := doPostWithAuth(t, "/create-checkout-session",
		checkoutRequest{DiscountCode: "EXPIRED2020"}, seedToken(t))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("expected a rejection message")
	}
}
