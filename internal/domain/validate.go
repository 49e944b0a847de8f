package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidLoan is wrapped by every loan validation failure.
var ErrInvalidLoan = errors.New("invalid loan")

// EngineFields are the inputs the risk engine reads.
var EngineFields = []string{
	"LoanID",
	"ProductType",
	"OutstandingBalance",
	"CreditScoreOrigination",
	"CreditScoreCurrent",
	"DaysPastDue",
}

// ValidationError describes why a loan was rejected.
type ValidationError struct {
	LoanID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	id := e.LoanID
	if id == "" {
		id = "<missing id>"
	}
	return fmt.Sprintf("loan %s: field %s: %s", id, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidLoan.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidLoan
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateLoan checks every required attribute of a loan record.
func ValidateLoan(l *Loan) error {
	if l == nil {
		return &ValidationError{Field: "loan", Reason: "nil record"}
	}
	if err := checkFinite(l); err != nil {
		return err
	}
	return toValidationError(l.LoanID, getValidator().Struct(l))
}

// ValidateEngineInput checks only the attributes listed in EngineFields.
func ValidateEngineInput(l *Loan) error {
	if l == nil {
		return &ValidationError{Field: "loan", Reason: "nil record"}
	}
	if math.IsNaN(l.OutstandingBalance) || math.IsInf(l.OutstandingBalance, 0) {
		return &ValidationError{LoanID: l.LoanID, Field: "OutstandingBalance", Reason: "must be finite"}
	}
	return toValidationError(l.LoanID, getValidator().StructPartial(l, EngineFields...))
}

func checkFinite(l *Loan) error {
	for name, v := range map[string]float64{
		"OriginalAmount":     l.OriginalAmount,
		"OutstandingBalance": l.OutstandingBalance,
		"InterestRate":       l.InterestRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{LoanID: l.LoanID, Field: name, Reason: "must be finite"}
		}
	}
	return nil
}

func toValidationError(loanID string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidLoan, err)
	}
	fe := verrs[0]
	return &ValidationError{
		LoanID: loanID,
		Field:  fe.Field(),
		Reason: describeTag(fe),
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	}
	return strings.TrimSpace(fe.Tag() + " " + fe.Param())
}
