package calculator

import (
	"math"
	"testing"

	"ess-loan-gateway/internal/pkg/error_handling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var standardFees = FeeSchedule{ProcessingFeePct: 1, InsurancePct: 1.5, OtherCharges: 5000}

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / want
}

func TestForward_KnownAnnuity(t *testing.T) {
	q, err := Forward(1_000_000, 12, 12, FeeSchedule{})
	require.NoError(t, err)

	// 1% monthly over 12 months
	assert.InDelta(t, 88_848.79, q.InstallmentAmount, 0.01)
	assert.InDelta(t, q.InstallmentAmount*12, q.TotalPayable, 1e-6)
	assert.InDelta(t, q.TotalPayable-1_000_000, q.TotalInterest, 1e-6)
	assert.Equal(t, 12, q.TenureMonths)
}

func TestForward_ZeroRate(t *testing.T) {
	q, err := Forward(1_200_000, 0, 12, FeeSchedule{})
	require.NoError(t, err)
	assert.Equal(t, 100_000.0, q.InstallmentAmount)
	assert.Equal(t, 1_200_000.0, q.TotalPayable)
	assert.Equal(t, 0.0, q.TotalInterest)
}

func TestForward_FeesChargedOnPrincipal(t *testing.T) {
	q, err := Forward(2_000_000, 18, 24, standardFees)
	require.NoError(t, err)
	assert.InDelta(t, 20_000, q.ProcessingFee, 1e-9)
	assert.InDelta(t, 30_000, q.Insurance, 1e-9)
	assert.Equal(t, 5_000.0, q.OtherCharges)
	assert.InDelta(t, 2_000_000-55_000, q.NetPrincipal, 1e-9)
}

func TestReverse_FeesUseSameBase(t *testing.T) {
	fwd, err := Forward(3_000_000, 16, 48, standardFees)
	require.NoError(t, err)

	rev, err := Reverse(fwd.InstallmentAmount, 16, 48, standardFees)
	require.NoError(t, err)

	assert.InDelta(t, fwd.ProcessingFee, rev.ProcessingFee, 0.01)
	assert.InDelta(t, fwd.Insurance, rev.Insurance, 0.01)
	assert.InDelta(t, fwd.NetPrincipal, rev.NetPrincipal, 0.05)
}

func TestRoundTrip_ForwardThenReverse(t *testing.T) {
	principals := []float64{100_000, 750_000, 5_000_000, 25_000_000, 50_000_000}
	rates := []float64{0, 1, 12, 18, 24, 36}
	for _, p := range principals {
		for _, r := range rates {
			for n := 1; n <= 120; n += 7 {
				fwd, err := Forward(p, r, n, standardFees)
				require.NoError(t, err)
				rev, err := Reverse(fwd.InstallmentAmount, r, n, standardFees)
				require.NoError(t, err)
				assert.Less(t, relErr(rev.EligiblePrincipal, p), 0.001, "p=%v r=%v n=%v", p, r, n)
			}
		}
	}
}

func TestRoundTrip_ReverseThenForward(t *testing.T) {
	installments := []float64{10_000, 150_000, 411_667, 2_000_000}
	rates := []float64{0, 3.5, 15, 28}
	for _, e := range installments {
		for _, r := range rates {
			for n := 1; n <= 96; n += 5 {
				rev, err := Reverse(e, r, n, standardFees)
				require.NoError(t, err)
				fwd, err := Forward(rev.EligiblePrincipal, r, n, standardFees)
				require.NoError(t, err)
				assert.Less(t, relErr(fwd.InstallmentAmount, e), 0.001, "e=%v r=%v n=%v", e, r, n)
			}
		}
	}
}

func TestScenarioA_ChargesQuoteRoundTrip(t *testing.T) {
	ceiling, err := OneThirdCeiling(1_765_000)
	require.NoError(t, err)
	assert.InDelta(t, 588_333, ceiling, 1)

	q, err := Evaluate(AffordabilityRequest{
		DesiredInstallment: 411_667,
		BasicSalary:        1_765_000,
		ExistingDeductions: 176_666,
		AnnualRatePct:      18,
		TenureMonths:       60,
		Fees:               standardFees,
	})
	require.NoError(t, err)

	back, err := Forward(q.EligiblePrincipal, 18, 60, standardFees)
	require.NoError(t, err)
	assert.Less(t, relErr(back.InstallmentAmount, 411_667), 0.001)
}

func TestAffordabilityHeadroom(t *testing.T) {
	h, err := AffordabilityHeadroom(900_000, 100_000)
	require.NoError(t, err)
	assert.InDelta(t, 200_000, h, 1e-9)

	h, err = AffordabilityHeadroom(900_000, 450_000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, h)

	_, err = AffordabilityHeadroom(math.NaN(), 0)
	var calcErr *error_handling.CalculationError
	assert.ErrorAs(t, err, &calcErr)
}

func TestEvaluate_CapsAtHeadroomAndProductMax(t *testing.T) {
	q, err := Evaluate(AffordabilityRequest{
		DesiredInstallment: 900_000,
		BasicSalary:        900_000,
		AnnualRatePct:      12,
		TenureMonths:       12,
	})
	require.NoError(t, err)
	assert.InDelta(t, 300_000, q.InstallmentAmount, 1e-6)

	q, err = Evaluate(AffordabilityRequest{
		DesiredInstallment: 300_000,
		AnnualRatePct:      12,
		TenureMonths:       12,
		MaxPrincipal:       1_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1_000_000.0, q.EligiblePrincipal)

	q, err = Evaluate(AffordabilityRequest{
		RequestedPrincipal: 5_000_000,
		AnnualRatePct:      12,
		TenureMonths:       12,
		MaxPrincipal:       2_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 2_000_000.0, q.EligiblePrincipal)
}

func TestEvaluate_NoHeadroomFails(t *testing.T) {
	_, err := Evaluate(AffordabilityRequest{
		BasicSalary:        300_000,
		ExistingDeductions: 100_000,
		AnnualRatePct:      12,
		TenureMonths:       12,
	})
	var calcErr *error_handling.CalculationError
	assert.ErrorAs(t, err, &calcErr)
}

func TestInvalidInputsFailFast(t *testing.T) {
	cases := []struct {
		name string
		fn   func() error
	}{
		{"nan principal", func() error { _, err := Forward(math.NaN(), 12, 12, FeeSchedule{}); return err }},
		{"inf principal", func() error { _, err := Forward(math.Inf(1), 12, 12, FeeSchedule{}); return err }},
		{"zero principal", func() error { _, err := Forward(0, 12, 12, FeeSchedule{}); return err }},
		{"negative rate", func() error { _, err := Forward(1000, -1, 12, FeeSchedule{}); return err }},
		{"zero tenure", func() error { _, err := Reverse(1000, 12, 0, FeeSchedule{}); return err }},
		{"negative installment", func() error { _, err := Reverse(-5, 12, 12, FeeSchedule{}); return err }},
		{"fees above principal", func() error {
			_, err := Forward(1000, 12, 12, FeeSchedule{OtherCharges: 5000})
			return err
		}},
		{"overflowing rate", func() error { _, err := Forward(1000, 1e308, 600, FeeSchedule{}); return err }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			var calcErr *error_handling.CalculationError
			assert.ErrorAs(t, err, &calcErr)
		})
	}
}

func TestParseAmountAndTenure(t *testing.T) {
	v, err := ParseAmount("BasicSalary", "1,765,000.00")
	require.NoError(t, err)
	assert.Equal(t, 1_765_000.0, v)

	v, err = ParseAmount("BasicSalary", "  ")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = ParseAmount("BasicSalary", "abc")
	var calcErr *error_handling.CalculationError
	assert.ErrorAs(t, err, &calcErr)

	_, err = ParseAmount("BasicSalary", "-10")
	assert.ErrorAs(t, err, &calcErr)

	n, err := ParseTenure(" 60 ")
	require.NoError(t, err)
	assert.Equal(t, 60, n)

	_, err = ParseTenure("sixty")
	assert.ErrorAs(t, err, &calcErr)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "411667.00", FormatAmount(411_667))
	assert.Equal(t, "10.13", FormatAmount(10.125))
	assert.Equal(t, 88848.79, RoundAmount(88848.7887))
}
