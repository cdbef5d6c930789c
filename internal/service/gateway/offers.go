package gateway_service

import (
	"sort"

	"ess-loan-gateway/internal/pkg/calculator"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/saga"
)

func offerFromFields(f protocol.OfferFields, kind consts.ApplicationKind) (saga.Offer, error) {
	amounts, err := parseAmounts(map[string]string{
		"BasicSalary":             f.BasicSalary,
		"NetSalary":               f.NetSalary,
		"OneThirdAmount":          f.OneThirdAmount,
		"TotalEmployeeDeduction":  f.TotalEmployeeDeduction,
		"RequestedAmount":         f.RequestedAmount,
		"DesiredDeductibleAmount": f.DesiredDeductibleAmount,
	})
	if err != nil {
		return saga.Offer{}, err
	}
	tenure, err := calculator.ParseTenure(f.Tenure)
	if err != nil {
		return saga.Offer{}, err
	}

	return saga.Offer{
		ApplicationID: f.ApplicationNumber,
		Kind:          kind,
		Terms: models.LoanTerms{
			ProductCode:        f.ProductCode,
			RequestedPrincipal: amounts["RequestedAmount"],
			TenureMonths:       tenure,
			DesiredInstallment: amounts["DesiredDeductibleAmount"],
		},
		Snapshot: models.ApplicantSnapshot{
			CheckNumber:            f.CheckNumber,
			FirstName:              f.FirstName,
			MiddleName:             f.MiddleName,
			LastName:               f.LastName,
			Sex:                    f.Sex,
			NIN:                    f.NIN,
			EmploymentDate:         f.EmploymentDate,
			RetirementDate:         f.RetirementDate,
			TermsOfEmployment:      f.TermsOfEmployment,
			BasicSalary:            amounts["BasicSalary"],
			NetSalary:              amounts["NetSalary"],
			OneThirdAmount:         amounts["OneThirdAmount"],
			TotalEmployeeDeduction: amounts["TotalEmployeeDeduction"],
			BankAccountNumber:      f.BankAccountNumber,
			SwiftCode:              f.SwiftCode,
			VoteCode:               f.VoteCode,
			VoteName:               f.VoteName,
			DesignationCode:        f.DesignationCode,
			DesignationName:        f.DesignationName,
			NearestBranchCode:      f.NearestBranchCode,
			NearestBranchName:      f.NearestBranchName,
			PhysicalAddress:        f.PhysicalAddress,
			EmailAddress:           f.EmailAddress,
			MobileNumber:           f.MobileNumber,
			LoanPurpose:            f.LoanPurpose,
		},
	}, nil
}

func restructureOffer(r *protocol.RestructuringRequest) (saga.Offer, error) {
	tenure, err := calculator.ParseTenure(r.NewTenure)
	if err != nil {
		return saga.Offer{}, err
	}
	amounts, err := parseAmounts(map[string]string{
		"BasicSalary":            r.BasicSalary,
		"TotalEmployeeDeduction": r.TotalEmployeeDeduction,
	})
	if err != nil {
		return saga.Offer{}, err
	}
	return saga.Offer{
		ApplicationID: r.ApplicationNumber,
		Kind:          consts.KindRestructure,
		Snapshot: models.ApplicantSnapshot{
			CheckNumber:            r.CheckNumber,
			BasicSalary:            amounts["BasicSalary"],
			TotalEmployeeDeduction: amounts["TotalEmployeeDeduction"],
		},
		Restructure: &saga.RestructureRequest{
			LoanNumber:      r.LoanNumber,
			NewTenureMonths: tenure,
			Reason:          r.Reason,
		},
	}, nil
}

// parseAmounts parses in field-name order so the first bad field reported is stable.
func parseAmounts(raw map[string]string) (map[string]float64, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]float64, len(raw))
	for _, name := range names {
		v, err := parseAmount(name, raw[name])
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func parseAmount(field, raw string) (float64, error) {
	return calculator.ParseAmount(field, raw)
}
