package estimation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardd-labs/cardd-backend/pkg/config"
	pkgerrors "github.com/cardd-labs/cardd-backend/pkg/errors"
)

func newTable() *RateTable {
	return NewRateTable(config.EstimationConfig{BaseRate: 50, SeverityRate: 85})
}

func TestEstimateScalesWithSeverity(t *testing.T) {
	table := newTable()

	amount, err := table.Estimate(context.Background(), Input{Kind: "dent", Severity: 0})
	require.NoError(t, err)
	assert.Equal(t, "50", amount.String())

	amount, err = table.Estimate(context.Background(), Input{Kind: "dent", Severity: 1})
	require.NoError(t, err)
	assert.Equal(t, "135", amount.String())

	amount, err = table.Estimate(context.Background(), Input{Kind: "dent", Severity: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "92.5", amount.String())
}

func TestEstimateValidatesInput(t *testing.T) {
	table := newTable()

	_, err := table.Estimate(context.Background(), Input{Kind: "", Severity: 0.5})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = table.Estimate(context.Background(), Input{Kind: "dent", Severity: 1.2})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
