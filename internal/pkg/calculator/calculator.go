// Package calculator implements the reducing-balance annuity used for loan quotes.
//
// Forward maps a principal to its monthly installment and Reverse maps a target installment back to
// the principal that produces it. Both modes charge fees against the principal, so feeding the output
// of one into the other reproduces the input.
package calculator

import (
	"math"
	"strconv"
	"strings"

	"ess-loan-gateway/internal/pkg/error_handling"

	"github.com/shopspring/decimal"
)

// FeeSchedule holds the charges levied on a loan principal.
type FeeSchedule struct {
	ProcessingFeePct float64 `bson:"processingFeePct" json:"processingFeePct"`
	InsurancePct     float64 `bson:"insurancePct" json:"insurancePct"`
	OtherCharges     float64 `bson:"otherCharges" json:"otherCharges"`
}

// Quote is the outcome of a forward or reverse computation.
type Quote struct {
	EligiblePrincipal float64 `bson:"eligiblePrincipal" json:"eligiblePrincipal"`
	NetPrincipal      float64 `bson:"netPrincipal" json:"netPrincipal"`
	InstallmentAmount float64 `bson:"installmentAmount" json:"installmentAmount"`
	TotalPayable      float64 `bson:"totalPayable" json:"totalPayable"`
	TotalInterest     float64 `bson:"totalInterest" json:"totalInterest"`
	ProcessingFee     float64 `bson:"processingFee" json:"processingFee"`
	Insurance         float64 `bson:"insurance" json:"insurance"`
	OtherCharges      float64 `bson:"otherCharges" json:"otherCharges"`
	TenureMonths      int     `bson:"tenureMonths" json:"tenureMonths"`
}

// TotalFees is the sum of every charge deducted from the principal.
func (q Quote) TotalFees() float64 {
	return q.ProcessingFee + q.Insurance + q.OtherCharges
}

// Forward computes the installment for a principal.
func Forward(principal, annualRatePct float64, tenureMonths int, fees FeeSchedule) (Quote, error) {
	if err := requirePositive("principal", principal); err != nil {
		return Quote{}, err
	}
	if err := validateTerms(annualRatePct, tenureMonths, fees); err != nil {
		return Quote{}, err
	}

	monthlyRate := annualRatePct / 1200
	var installment float64
	if monthlyRate == 0 {
		installment = principal / float64(tenureMonths)
	} else {
		factor := math.Pow(1+monthlyRate, float64(tenureMonths))
		installment = principal * monthlyRate * factor / (factor - 1)
	}

	return buildQuote(principal, installment, monthlyRate, tenureMonths, fees)
}

// Reverse computes the principal whose installment equals targetInstallment.
func Reverse(targetInstallment, annualRatePct float64, tenureMonths int, fees FeeSchedule) (Quote, error) {
	if err := requirePositive("installment", targetInstallment); err != nil {
		return Quote{}, err
	}
	if err := validateTerms(annualRatePct, tenureMonths, fees); err != nil {
		return Quote{}, err
	}

	monthlyRate := annualRatePct / 1200
	var principal float64
	if monthlyRate == 0 {
		principal = targetInstallment * float64(tenureMonths)
	} else {
		factor := math.Pow(1+monthlyRate, float64(tenureMonths))
		principal = targetInstallment * (factor - 1) / (monthlyRate * factor)
	}

	return buildQuote(principal, targetInstallment, monthlyRate, tenureMonths, fees)
}

// OneThirdCeiling is the statutory maximum monthly deduction for a basic salary.
func OneThirdCeiling(basicSalary float64) (float64, error) {
	if err := requireNonNegative("basicSalary", basicSalary); err != nil {
		return 0, err
	}
	return basicSalary / 3, nil
}

// AffordabilityHeadroom is what remains of the one-third ceiling after existing deductions, never below zero.
func AffordabilityHeadroom(basicSalary, existingDeductions float64) (float64, error) {
	ceiling, err := OneThirdCeiling(basicSalary)
	if err != nil {
		return 0, err
	}
	if err := requireNonNegative("existingDeductions", existingDeductions); err != nil {
		return 0, err
	}
	return math.Max(0, ceiling-existingDeductions), nil
}

func buildQuote(principal, installment, monthlyRate float64, tenureMonths int, fees FeeSchedule) (Quote, error) {
	totalPayable := installment * float64(tenureMonths)
	totalInterest := totalPayable - principal
	if monthlyRate == 0 {
		totalPayable = principal
		totalInterest = 0
	}

	processingFee := principal * fees.ProcessingFeePct / 100
	insurance := principal * fees.InsurancePct / 100

	q := Quote{
		EligiblePrincipal: principal,
		InstallmentAmount: installment,
		TotalPayable:      totalPayable,
		TotalInterest:     totalInterest,
		ProcessingFee:     processingFee,
		Insurance:         insurance,
		OtherCharges:      fees.OtherCharges,
		TenureMonths:      tenureMonths,
	}
	q.NetPrincipal = principal - q.TotalFees()

	if err := checkResult(q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

func checkResult(q Quote) error {
	results := []struct {
		field string
		value float64
	}{
		{"eligiblePrincipal", q.EligiblePrincipal},
		{"netPrincipal", q.NetPrincipal},
		{"installmentAmount", q.InstallmentAmount},
		{"totalPayable", q.TotalPayable},
		{"totalInterest", q.TotalInterest},
		{"processingFee", q.ProcessingFee},
		{"insurance", q.Insurance},
	}
	for _, r := range results {
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) {
			return &error_handling.CalculationError{Field: r.field, Reason: "result is not a finite number"}
		}
		if r.value < 0 {
			return &error_handling.CalculationError{Field: r.field, Reason: "result is negative"}
		}
	}
	return nil
}

func validateTerms(annualRatePct float64, tenureMonths int, fees FeeSchedule) error {
	if err := requireNonNegative("annualRatePct", annualRatePct); err != nil {
		return err
	}
	if tenureMonths < 1 {
		return &error_handling.CalculationError{Field: "tenureMonths", Reason: "must be at least one month"}
	}
	if err := requireNonNegative("processingFeePct", fees.ProcessingFeePct); err != nil {
		return err
	}
	if err := requireNonNegative("insurancePct", fees.InsurancePct); err != nil {
		return err
	}
	return requireNonNegative("otherCharges", fees.OtherCharges)
}

func requirePositive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &error_handling.CalculationError{Field: field, Reason: "not a finite number"}
	}
	if v <= 0 {
		return &error_handling.CalculationError{Field: field, Reason: "must be greater than zero"}
	}
	return nil
}

func requireNonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &error_handling.CalculationError{Field: field, Reason: "not a finite number"}
	}
	if v < 0 {
		return &error_handling.CalculationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

// ParseAmount reads a protocol amount; blank reads as zero.
func ParseAmount(field, raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, &error_handling.CalculationError{Field: field, Reason: "not a number"}
	}
	v := d.InexactFloat64()
	if err := requireNonNegative(field, v); err != nil {
		return 0, err
	}
	return v, nil
}

// ParseTenure reads a protocol tenure in months.
func ParseTenure(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &error_handling.CalculationError{Field: "tenure", Reason: "not a whole number of months"}
	}
	if n < 1 {
		return 0, &error_handling.CalculationError{Field: "tenure", Reason: "must be at least one month"}
	}
	return n, nil
}

// FormatAmount renders money with two decimals, rounding half away from zero.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// RoundAmount rounds money to two decimals.
func RoundAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
