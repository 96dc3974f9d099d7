package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

func TestStandardCostCalculator_Calculate(t *testing.T) {
	calculator := domain.NewStandardCostCalculator()

	tokenPriced := domain.CostModel{InputPer1K: 0.01, OutputPer1K: 0.02}
	perCall := domain.CostModel{PerCall: 0.005, InputPer1K: 0.001, OutputPer1K: 0.001}

	tests := []struct {
		name         string
		model        domain.CostModel
		usage        domain.Usage
		expectedCost float64
	}{
		{
			name:         "token priced service",
			model:        tokenPriced,
			usage:        domain.Usage{PromptTokens: 1000, CompletionTokens: 500},
			expectedCost: 0.02, // (1000/1000 * 0.01) + (500/1000 * 0.02)
		},
		{
			name:         "per call fee is added once",
			model:        perCall,
			usage:        domain.Usage{PromptTokens: 2000, CompletionTokens: 1000},
			expectedCost: 0.008,
		},
		{
			name:         "free service",
			model:        domain.CostModel{},
			usage:        domain.Usage{PromptTokens: 5000, CompletionTokens: 5000},
			expectedCost: 0,
		},
		{
			name:         "partial tokens calculation",
			model:        tokenPriced,
			usage:        domain.Usage{PromptTokens: 250, CompletionTokens: 100},
			expectedCost: 0.0045, // (250/1000 * 0.01) + (100/1000 * 0.02)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := calculator.Calculate(tt.model, tt.usage)
			require.InDelta(t, tt.expectedCost, cost, 1e-9)
		})
	}
}

func TestCostModel_IsFree(t *testing.T) {
	require.True(t, domain.CostModel{}.IsFree())
	require.False(t, domain.CostModel{PerCall: 0.001}.IsFree())
}
