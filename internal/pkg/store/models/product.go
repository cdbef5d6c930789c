package models

import (
	"ess-loan-gateway/internal/pkg/calculator"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoanProduct struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ProductCode      string             `bson:"productCode" json:"productCode"`
	Name             string             `bson:"name" json:"name"`
	MinPrincipal     float64            `bson:"minPrincipal" json:"minPrincipal"`
	MaxPrincipal     float64            `bson:"maxPrincipal" json:"maxPrincipal"`
	MinTenure        int                `bson:"minTenure" json:"minTenure"`
	MaxTenure        int                `bson:"maxTenure" json:"maxTenure"`
	AnnualRatePct    float64            `bson:"annualRatePct" json:"annualRatePct"`
	ProcessingFeePct float64            `bson:"processingFeePct" json:"processingFeePct"`
	InsurancePct     float64            `bson:"insurancePct" json:"insurancePct"`
	OtherCharges     float64            `bson:"otherCharges" json:"otherCharges"`
	LedgerProductID  string             `bson:"ledgerProductId" json:"ledgerProductId"`
	Active           bool               `bson:"active" json:"active"`
}

func (p LoanProduct) Fees() calculator.FeeSchedule {
	return calculator.FeeSchedule{
		ProcessingFeePct: p.ProcessingFeePct,
		InsurancePct:     p.InsurancePct,
		OtherCharges:     p.OtherCharges,
	}
}
