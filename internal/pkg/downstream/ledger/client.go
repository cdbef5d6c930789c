package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ess-loan-gateway/internal/pkg/config"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/otel"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	tenantHeader = "X-Tenant-Id"
	dateFormat   = "yyyy-MM-dd"
	locale       = "en"
	layout       = "2006-01-02"
)

// ErrLedgerUnavailable is returned without calling the ledger while the breaker is open.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Client is the core-banking ledger as the saga and gateway see it.
type Client interface {
	SearchClient(ctx context.Context, q ClientQuery) (*ClientRecord, error)
	CreateClient(ctx context.Context, req *CreateClientRequest) (string, error)
	FindLoanByExternalID(ctx context.Context, externalID string) (*Loan, error)
	CreateLoan(ctx context.Context, req *CreateLoanRequest) (string, error)
	ApproveLoan(ctx context.Context, loanID string, on time.Time) error
	UndoApproval(ctx context.Context, loanID string) error
	WithdrawLoan(ctx context.Context, loanID string, on time.Time) error
	DisburseLoan(ctx context.Context, loanID string, on time.Time) error
	FetchLoan(ctx context.Context, loanID string) (*Loan, error)
	ActiveLoans(ctx context.Context, clientID string) ([]Loan, error)
	FindReschedule(ctx context.Context, loanID, externalID string) (string, error)
	CreateReschedule(ctx context.Context, req *RescheduleRequest) (string, error)
}

// CallContext bounds one ledger call by timeout and traces it as ledger.<op>. A non-positive
// timeout leaves the deadline to the client.
func CallContext(ctx context.Context, op string, timeout time.Duration) (context.Context, func()) {
	ctx, span := otel.StartSpan(ctx, "ledger."+op)
	if timeout <= 0 {
		return ctx, func() { span.End() }
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		span.End()
	}
}

type RESTClient struct {
	baseURL    string
	username   string
	password   string
	tenant     string
	officeID   int
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker
}

func NewRESTClient(cfg config.LedgerConfig) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		tenant:     cfg.Tenant,
		officeID:   cfg.OfficeID,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker:    newBreaker("ledger", cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// OfficeID is the ledger office new clients are opened under.
func (c *RESTClient) OfficeID() int {
	return c.officeID
}

func (c *RESTClient) SearchClient(ctx context.Context, q ClientQuery) (*ClientRecord, error) {
	params := url.Values{}
	if q.ExternalID != "" {
		params.Set("externalId", q.ExternalID)
	}
	if q.NIN != "" {
		params.Set("nationalId", q.NIN)
	}

	var page pageResponse[ClientRecord]
	if err := c.do(ctx, "SearchClient", http.MethodGet, "/clients?"+params.Encode(), nil, &page); err != nil {
		return nil, err
	}
	if len(page.PageItems) == 0 {
		return nil, nil
	}
	// a client opened moments ago is still pending activation and must be found too
	for i := range page.PageItems {
		if page.PageItems[i].Active {
			return &page.PageItems[i], nil
		}
	}
	return &page.PageItems[0], nil
}

func (c *RESTClient) CreateClient(ctx context.Context, req *CreateClientRequest) (string, error) {
	req.OfficeID = c.officeID
	req.DateFormat, req.Locale = dateFormat, locale
	if req.SubmittedOnDay == "" {
		req.SubmittedOnDay = time.Now().Format(layout)
	}

	var res resourceResponse
	if err := c.do(ctx, "CreateClient", http.MethodPost, "/clients", req, &res); err != nil {
		return "", err
	}
	return firstNonEmpty(res.ClientID, res.ResourceID), nil
}

// FindLoanByExternalID returns the loan opened for externalID, or nil when there is none.
func (c *RESTClient) FindLoanByExternalID(ctx context.Context, externalID string) (*Loan, error) {
	var page pageResponse[Loan]
	if err := c.do(ctx, "FindLoanByExternalID", http.MethodGet, "/loans?externalId="+url.QueryEscape(externalID), nil, &page); err != nil {
		return nil, err
	}
	for i := range page.PageItems {
		if page.PageItems[i].ExternalID == externalID {
			return &page.PageItems[i], nil
		}
	}
	return nil, nil
}

func (c *RESTClient) CreateLoan(ctx context.Context, req *CreateLoanRequest) (string, error) {
	req.DateFormat, req.Locale = dateFormat, locale
	if req.SubmittedOnDay == "" {
		req.SubmittedOnDay = time.Now().Format(layout)
	}

	var res resourceResponse
	if err := c.do(ctx, "CreateLoan", http.MethodPost, "/loans", req, &res); err != nil {
		return "", err
	}
	return firstNonEmpty(res.LoanID, res.ResourceID), nil
}

func (c *RESTClient) ApproveLoan(ctx context.Context, loanID string, on time.Time) error {
	body := map[string]string{"approvedOnDate": on.Format(layout), "dateFormat": dateFormat, "locale": locale}
	return c.do(ctx, "ApproveLoan", http.MethodPost, "/loans/"+url.PathEscape(loanID)+"?command=approve", body, nil)
}

func (c *RESTClient) UndoApproval(ctx context.Context, loanID string) error {
	body := map[string]string{"note": "Application cancelled"}
	return c.do(ctx, "UndoApproval", http.MethodPost, "/loans/"+url.PathEscape(loanID)+"?command=undoapproval", body, nil)
}

func (c *RESTClient) WithdrawLoan(ctx context.Context, loanID string, on time.Time) error {
	body := map[string]string{"withdrawnOnDate": on.Format(layout), "dateFormat": dateFormat, "locale": locale}
	return c.do(ctx, "WithdrawLoan", http.MethodPost, "/loans/"+url.PathEscape(loanID)+"?command=withdrawnByApplicant", body, nil)
}

func (c *RESTClient) DisburseLoan(ctx context.Context, loanID string, on time.Time) error {
	body := map[string]string{"actualDisbursementDate": on.Format(layout), "dateFormat": dateFormat, "locale": locale}
	return c.do(ctx, "DisburseLoan", http.MethodPost, "/loans/"+url.PathEscape(loanID)+"?command=disburse", body, nil)
}

func (c *RESTClient) FetchLoan(ctx context.Context, loanID string) (*Loan, error) {
	var loan Loan
	if err := c.do(ctx, "FetchLoan", http.MethodGet, "/loans/"+url.PathEscape(loanID), nil, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *RESTClient) ActiveLoans(ctx context.Context, clientID string) ([]Loan, error) {
	var accounts accountsResponse
	if err := c.do(ctx, "ActiveLoans", http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	active := make([]Loan, 0, len(accounts.LoanAccounts))
	for _, l := range accounts.LoanAccounts {
		if l.Active() {
			active = append(active, l)
		}
	}
	return active, nil
}

// FindReschedule returns the id of the reschedule request filed on loanID for externalID, or "" when none.
func (c *RESTClient) FindReschedule(ctx context.Context, loanID, externalID string) (string, error) {
	var requests []rescheduleRecord
	if err := c.do(ctx, "FindReschedule", http.MethodGet, "/rescheduleloans?loanId="+url.QueryEscape(loanID), nil, &requests); err != nil {
		return "", err
	}
	for _, r := range requests {
		if r.ExternalID == externalID {
			return r.ID, nil
		}
	}
	return "", nil
}

func (c *RESTClient) CreateReschedule(ctx context.Context, req *RescheduleRequest) (string, error) {
	req.DateFormat, req.Locale = dateFormat, locale
	if req.SubmittedOnDay == "" {
		req.SubmittedOnDay = time.Now().Format(layout)
	}

	var res resourceResponse
	if err := c.do(ctx, "CreateReschedule", http.MethodPost, "/rescheduleloans", req, &res); err != nil {
		return "", err
	}
	return res.ResourceID, nil
}

// do sends one ledger call under the per-call timeout, the rate limiter and the breaker.
// Transport failures and 5xx responses count against the breaker; 4xx responses do not.
func (c *RESTClient) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return &error_handling.LedgerError{Op: op, Unavailable: true, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	err := c.breaker.run(func() error { return c.exchange(ctx, op, method, path, in, out) })
	if errors.Is(err, ErrLedgerUnavailable) {
		logger.CtxWarn(ctx, log_messages.LedgerBreakerOpen, zap.String("op", op))
		return &error_handling.LedgerError{Op: op, Unavailable: true, Err: ErrLedgerUnavailable}
	}
	return err
}

func (c *RESTClient) exchange(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &error_handling.LedgerError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &error_handling.LedgerError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set(tenantHeader, c.tenant)
	req.Header.Set("Accept", consts.ContentTypeJSON)
	if in != nil {
		req.Header.Set("Content-Type", consts.ContentTypeJSON)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.CtxError(ctx, log_messages.LedgerRequestFailed, err, zap.String("op", op))
		return &error_handling.LedgerError{Op: op, StatusCode: -1, Unavailable: true, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.CtxError(ctx, "failed to close ledger response body", cerr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &error_handling.LedgerError{Op: op, StatusCode: resp.StatusCode, Unavailable: true, Err: fmt.Errorf("read response body: %w", err)}
	}

	logger.CtxInfo(ctx, "Received ledger response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return &error_handling.LedgerError{Op: op, StatusCode: resp.StatusCode, Unavailable: true, Err: decodeError(bodyBytes)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &error_handling.LedgerError{Op: op, StatusCode: resp.StatusCode, Err: decodeError(bodyBytes)}
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &error_handling.LedgerError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeError(body []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || (apiErr.DefaultMessage == "" && apiErr.DeveloperMessage == "") {
		return errors.New(log_messages.ErrorUnknownFormatError)
	}
	if apiErr.DefaultMessage != "" {
		return errors.New(apiErr.DefaultMessage)
	}
	return errors.New(apiErr.DeveloperMessage)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
