package estimation

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cardd-labs/cardd-backend/pkg/config"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
)

// Input describes the damage being priced. Severity is normalized to [0, 1]
// by the upstream assessment pipeline.
type Input struct {
	Kind     string
	Severity float64
}

// Estimator prices a reported damage. The production assessment pipeline sits
// behind this boundary; RateTable is the in-process default.
type Estimator interface {
	Estimate(ctx context.Context, input Input) (decimal.Decimal, error)
}

// RateTable is a linear rate card: base rate plus a severity-scaled surcharge.
type RateTable struct {
	baseRate     decimal.Decimal
	severityRate decimal.Decimal
}

// NewRateTable builds the default estimator from config.
func NewRateTable(cfg config.EstimationConfig) *RateTable {
	return &RateTable{
		baseRate:     decimal.NewFromFloat(cfg.BaseRate),
		severityRate: decimal.NewFromFloat(cfg.SeverityRate),
	}
}

func (r *RateTable) Estimate(_ context.Context, input Input) (decimal.Decimal, error) {
	if strings.TrimSpace(input.Kind) == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "damage kind required")
	}
	if input.Severity < 0 || input.Severity > 1 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "severity must be between 0 and 1")
	}

	severity := decimal.NewFromFloat(input.Severity)
	amount := r.baseRate.Add(r.severityRate.Mul(severity))
	return amount.Round(2), nil
}
