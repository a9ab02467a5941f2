package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; tag != "" && tag != "-" {
			return tag
		}
		return f.Name
	})
	return v
}()

// LineViolation describes one request line that cannot be charged.
type LineViolation struct {
	CartIndex int    `json:"cartIndex"`
	ItemID    string `json:"itemId,omitempty"`
	Reason    string `json:"reason"`
}

// ValidateLines checks every line and reports all violations at once.
func ValidateLines(items []LineItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	}
	var violations []LineViolation
	seen := map[string]bool{}
	for idx, item := range items {
		reason := lineProblem(item)
		if reason == "" && seen[item.ItemID] {
			reason = "duplicate item id"
		}
		seen[item.ItemID] = true
		if reason != "" {
			violations = append(violations, LineViolation{CartIndex: idx, ItemID: item.ItemID, Reason: reason})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart item(s) cannot be checked out", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

func lineProblem(item LineItem) string {
	switch {
	case strings.TrimSpace(item.ItemID) == "":
		return "item id is required"
	case item.Quantity <= 0:
		return "quantity must be positive"
	case item.UnitPrice < 0 || item.Total < 0:
		return "prices cannot be negative"
	}
	switch item.Type {
	case ItemTicket:
		return ""
	case ItemMembership:
		if strings.TrimSpace(item.MembershipID) == "" {
			return "membership plan is required"
		}
		return ""
	default:
		return fmt.Sprintf("type %q cannot be checked out", item.Type)
	}
}

// ValidateGuest checks the guest contact, returning field-level messages.
func ValidateGuest(guest *Guest) error {
	if guest == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "Guest contact details are required.")
	}
	if err := validate.Struct(guest); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest details")
		}
		fields := map[string]string{}
		for _, fe := range errs {
			fields[fe.Field()] = guestMessage(fe)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "Please check your contact details.").WithDetails(fields)
	}
	return nil
}

func guestMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}

// ValidateGuestOrder applies the guest checkout rules: tickets only, valid
// contact and an explicit waiver acknowledgement.
func ValidateGuestOrder(req IntentRequest) error {
	if err := ValidateGuest(req.Guest); err != nil {
		return err
	}
	if !req.WaiverAcknowledged {
		return pkgerrors.New(pkgerrors.CodeValidation, "Please acknowledge the waiver before paying.")
	}
	for _, item := range req.Items {
		if item.Type != ItemTicket {
			return pkgerrors.New(pkgerrors.CodeValidation, "Guest checkout supports tickets only. Please sign in to buy a membership.")
		}
	}
	return nil
}
