package calculator

import (
	"math"

	"ess-loan-gateway/internal/pkg/error_handling"
)

// AffordabilityRequest is the input of a charges quote. Zero values mean "not supplied".
type AffordabilityRequest struct {
	RequestedPrincipal float64
	DesiredInstallment float64
	BasicSalary        float64
	ExistingDeductions float64
	AnnualRatePct      float64
	TenureMonths       int
	MaxPrincipal       float64
	Fees               FeeSchedule
}

// Evaluate picks the computation mode for a charges quote.
//
// A requested principal is quoted forward. Otherwise the desired installment, capped by the one-third
// headroom when a basic salary is known, is quoted in reverse; with no desired installment the headroom
// itself is the target. The eligible principal never exceeds MaxPrincipal when one is set.
func Evaluate(req AffordabilityRequest) (Quote, error) {
	if req.RequestedPrincipal > 0 {
		principal := req.RequestedPrincipal
		if req.MaxPrincipal > 0 {
			principal = math.Min(principal, req.MaxPrincipal)
		}
		return Forward(principal, req.AnnualRatePct, req.TenureMonths, req.Fees)
	}

	target, err := TargetInstallment(req.DesiredInstallment, req.BasicSalary, req.ExistingDeductions)
	if err != nil {
		return Quote{}, err
	}

	q, err := Reverse(target, req.AnnualRatePct, req.TenureMonths, req.Fees)
	if err != nil {
		return Quote{}, err
	}
	if req.MaxPrincipal > 0 && q.EligiblePrincipal > req.MaxPrincipal {
		return Forward(req.MaxPrincipal, req.AnnualRatePct, req.TenureMonths, req.Fees)
	}
	return q, nil
}

// TargetInstallment resolves the installment a reverse quote should aim for.
func TargetInstallment(desired, basicSalary, existingDeductions float64) (float64, error) {
	target := desired
	if basicSalary > 0 {
		headroom, err := AffordabilityHeadroom(basicSalary, existingDeductions)
		if err != nil {
			return 0, err
		}
		if target <= 0 || target > headroom {
			target = headroom
		}
	}
	if target <= 0 {
		return 0, &error_handling.CalculationError{Field: "installment", Reason: "no affordable installment for the given salary and deductions"}
	}
	return target, nil
}
