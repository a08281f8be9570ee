package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// validateDiscountCode evaluates a submitted code against the rule table.
// Rejections are a routine outcome and come back as 200 with valid=false;
// only a missing field or an infrastructure failure is an error status.
func (h *Handler) validateDiscountCode(w http.ResponseWriter, r *http.Request) {
	// The client sends discountCode, as the checkout endpoint does; code is
	// accepted as a legacy alias.
	var code, alias string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "discountCode":
			v, err := d.Str()
			if err != nil {
				return err
			}
			code = v
			return nil
		case "code":
			v, err := d.Str()
			if err != nil {
				return err
			}
			alias = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if code == "" {
		code = alias
	}
	if code == "" {
		writeError(w, http.StatusBadRequest, "Discount code is required")
		return
	}

	decision, err := h.evaluator.Evaluate(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to validate discount code")
		return
	}

	if !decision.Accepted {
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.FieldStart("valid")
			e.Bool(false)
			e.FieldStart("message")
			e.Str(decision.Reason.Message())
		})
		return
	}

	rule := decision.Rule
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("valid")
		e.Bool(true)
		e.FieldStart("code")
		e.Str(string(decision.Code))
		e.FieldStart("percentage")
		e.Int(rule.Percentage)
		e.FieldStart("duration")
		e.Str(string(rule.Duration))
		if rule.Description != "" {
			e.FieldStart("description")
			e.Str(rule.Description)
		}
		if rule.ExpiresAt != nil {
			e.FieldStart("expiresAt")
			e.Str(rule.ExpiresAt.UTC().Format(time.RFC3339))
		}
		if rule.MaxUses > 0 {
			e.FieldStart("maxUses")
			e.Int(rule.MaxUses)
		}
	})
}
