// Package ledgertest provides a testify mock of the ledger client.
package ledgertest

import (
	"context"
	"time"

	"ess-loan-gateway/internal/pkg/downstream/ledger"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

var _ ledger.Client = (*MockClient)(nil)

func (m *MockClient) SearchClient(ctx context.Context, q ledger.ClientQuery) (*ledger.ClientRecord, error) {
	args := m.Called(ctx, q)
	record, _ := args.Get(0).(*ledger.ClientRecord)
	return record, args.Error(1)
}

func (m *MockClient) CreateClient(ctx context.Context, req *ledger.CreateClientRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockClient) FindLoanByExternalID(ctx context.Context, externalID string) (*ledger.Loan, error) {
	args := m.Called(ctx, externalID)
	loan, _ := args.Get(0).(*ledger.Loan)
	return loan, args.Error(1)
}

func (m *MockClient) CreateLoan(ctx context.Context, req *ledger.CreateLoanRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockClient) ApproveLoan(ctx context.Context, loanID string, on time.Time) error {
	return m.Called(ctx, loanID, on).Error(0)
}

func (m *MockClient) UndoApproval(ctx context.Context, loanID string) error {
	return m.Called(ctx, loanID).Error(0)
}

func (m *MockClient) WithdrawLoan(ctx context.Context, loanID string, on time.Time) error {
	return m.Called(ctx, loanID, on).Error(0)
}

func (m *MockClient) DisburseLoan(ctx context.Context, loanID string, on time.Time) error {
	return m.Called(ctx, loanID, on).Error(0)
}

func (m *MockClient) FetchLoan(ctx context.Context, loanID string) (*ledger.Loan, error) {
	args := m.Called(ctx, loanID)
	loan, _ := args.Get(0).(*ledger.Loan)
	return loan, args.Error(1)
}

func (m *MockClient) ActiveLoans(ctx context.Context, clientID string) ([]ledger.Loan, error) {
	args := m.Called(ctx, clientID)
	loans, _ := args.Get(0).([]ledger.Loan)
	return loans, args.Error(1)
}

func (m *MockClient) FindReschedule(ctx context.Context, loanID, externalID string) (string, error) {
	args := m.Called(ctx, loanID, externalID)
	return args.String(0), args.Error(1)
}

func (m *MockClient) CreateReschedule(ctx context.Context, req *ledger.RescheduleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
