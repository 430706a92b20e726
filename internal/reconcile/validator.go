package reconcile

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/datasource"
)

// RowValidator checks normalized feed rows before they touch the store.
type RowValidator struct {
	validate *validator.Validate
	logger   *logrus.Entry
}

// NewRowValidator creates a new row validator
func NewRowValidator(logger *logrus.Logger) *RowValidator {
	return &RowValidator{
		validate: validator.New(),
		logger:   logger.WithField("component", "row_validator"),
	}
}

// Validate returns the problems found in row, empty when the row is usable.
func (v *RowValidator) Validate(row *datasource.RawResultRow) []string {
	var problems []string

	if err := v.validate.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %s (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if row.StartingPrice != nil && !row.StartingPrice.IsPositive() {
		problems = append(problems, fmt.Sprintf("starting price must be positive, got %s", row.StartingPrice))
	}

	if row.Scratched && row.FinishPosition != nil && *row.FinishPosition > 0 {
		v.logger.WithFields(logrus.Fields{
			"provider":    row.Provider,
			"track":       row.Track,
			"race_number": row.RaceNumber,
			"tab_number":  row.TabNumber,
		}).Debug("Scratched runner reported with a finishing position; treating as scratched")
	}

	return problems
}

// Usable reports whether row passed validation, logging the problems when not.
func (v *RowValidator) Usable(row *datasource.RawResultRow) bool {
	problems := v.Validate(row)
	if len(problems) == 0 {
		return true
	}
	v.logger.WithFields(logrus.Fields{
		"provider":    row.Provider,
		"state":       row.State,
		"track":       row.Track,
		"race_number": row.RaceNumber,
		"tab_number":  row.TabNumber,
		"problems":    problems,
	}).Warn("Dropping invalid feed row")
	return false
}
