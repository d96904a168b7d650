package transactions

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LineInput describes one proposed line.
type LineInput struct {
	AccountID   uuid.UUID      `validate:"required"`
	Type        money.LineType `validate:"required,oneof=DEBIT CREDIT"`
	Amount      money.Cents    `validate:"required,gt=0"`
	Description string         `validate:"max=500"`
}

// CreateInput groups the fields required to draft a transaction.
type CreateInput struct {
	CompanyID   uuid.UUID   `validate:"required"`
	CreatedBy   uuid.UUID   `validate:"required"`
	Currency    string      `validate:"required,len=3"`
	Description string      `validate:"required,max=500"`
	Date        time.Time   `validate:"required"`
	Lines       []LineInput `validate:"required,min=2,dive"`
}

// Validate runs structural field validation. Business checks live in the
// Validator.
func (in CreateInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return shared.Wrap(shared.KindValidationFailed, "transactions: invalid input", err)
	}
	if err := money.ValidateCurrency(in.Currency); err != nil {
		return err
	}
	return nil
}

// ToTransaction materializes a draft aggregate from the input.
func (in CreateInput) ToTransaction(reference string) Transaction {
	id := uuid.New()
	lines := make([]Line, 0, len(in.Lines))
	for _, line := range in.Lines {
		lines = append(lines, Line{
			ID:            uuid.New(),
			TransactionID: id,
			AccountID:     line.AccountID,
			Type:          line.Type,
			Amount:        line.Amount,
			Description:   line.Description,
		})
	}
	return Transaction{
		ID:          id,
		CompanyID:   in.CompanyID,
		CreatedBy:   in.CreatedBy,
		Currency:    in.Currency,
		Description: in.Description,
		Date:        in.Date,
		Status:      StatusDraft,
		Lines:       lines,
	}
}
