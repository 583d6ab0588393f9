package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/tgpanel/internal/domain"
)

const (
	addAccountPath    = "/accounts/add"
	verifyCodePath    = "/accounts/verify"
	importSessionPath = "/accounts/import-session"
	accountsPath      = "/accounts/"
)

type addAccountRequest struct {
	APIID       string `json:"api_id"`
	APIHash     string `json:"api_hash"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name,omitempty"`
}

type existingAccountPayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	IsConnected bool   `json:"is_connected"`
}

type addAccountResponse struct {
	AccountID     int64                   `json:"account_id"`
	Status        string                  `json:"status"`
	PhoneCodeHash string                  `json:"phone_code_hash"`
	NeedsPassword bool                    `json:"needs_password"`
	Message       string                  `json:"message"`
	Existing      *existingAccountPayload `json:"existing_account"`
}

type verifyCodeRequest struct {
	AccountID     int64  `json:"account_id"`
	PhoneCode     string `json:"phone_code"`
	PhoneCodeHash string `json:"phone_code_hash"`
	Password      string `json:"password,omitempty"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type accountPayload struct {
	ID          int64  `json:"id"`
	APIID       apiID  `json:"api_id"`
	APIHash     string `json:"api_hash"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	IsConnected bool   `json:"is_connected"`
	CreatedAt   string `json:"created_at"`
}

type accountsResponse struct {
	Accounts []accountPayload `json:"accounts"`
}

type checkStatusResponse struct {
	IsConnected bool   `json:"is_connected"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// apiID accepts the api id as either a JSON string or number; the backend
// has stored both over time.
type apiID string

func (id *apiID) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*id = apiID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("api_id: %w", err)
	}
	*id = apiID(number.String())
	return nil
}

// AccountRegistry implements ports.AccountRegistry.
type AccountRegistry struct {
	Client Client
}

func (r AccountRegistry) AddAccount(ctx context.Context, creds domain.Credentials) (domain.AddAccountResult, error) {
	var payload addAccountResponse
	err := r.Client.do(ctx, request{
		op:     "add account",
		method: http.MethodPost,
		path:   addAccountPath,
		body: addAccountRequest{
			APIID:       creds.APIID,
			APIHash:     creds.APIHash,
			PhoneNumber: creds.PhoneNumber,
			Name:        creds.Name,
		},
	}, &payload)
	if err != nil {
		return domain.AddAccountResult{}, err
	}

	result := domain.AddAccountResult{
		Status:        domain.AddAccountNew,
		AccountID:     domain.AccountID(payload.AccountID),
		CodeHash:      payload.PhoneCodeHash,
		NeedsPassword: payload.NeedsPassword,
		Message:       payload.Message,
	}
	switch domain.AddAccountStatus(payload.Status) {
	case domain.AddAccountAlreadyConnected, domain.AddAccountAlreadyExists:
		result.Status = domain.AddAccountStatus(payload.Status)
	}
	if payload.Existing != nil {
		result.Existing = &domain.ExistingAccount{
			ID:          domain.AccountID(payload.Existing.ID),
			Name:        payload.Existing.Name,
			PhoneNumber: payload.Existing.PhoneNumber,
			IsConnected: payload.Existing.IsConnected,
		}
	}
	return result, nil
}

// VerifyCode reports every rejection as *domain.VerificationError. The kind
// comes from the response when present, else from the detail text.
func (r AccountRegistry) VerifyCode(ctx context.Context, pending domain.PendingVerification) error {
	err := r.Client.do(ctx, request{
		op:     "verify code",
		method: http.MethodPost,
		path:   verifyCodePath,
		body: verifyCodeRequest{
			AccountID:     int64(pending.AccountID),
			PhoneCode:     pending.Code,
			PhoneCodeHash: pending.CodeHash,
			Password:      pending.Password,
		},
	}, nil)
	if err == nil {
		return nil
	}

	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) {
		return err
	}
	kind := domain.VerifyFailureKind(remoteErr.Kind)
	if !kind.Valid() {
		kind = domain.ClassifyVerificationFailure(remoteErr.Detail)
	}
	return &domain.VerificationError{Kind: kind, Message: remoteErr.Detail}
}

func (r AccountRegistry) ImportSession(ctx context.Context, req domain.SessionImportRequest) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := []struct{ name, value string }{
		{"api_id", req.Credentials.APIID},
		{"api_hash", req.Credentials.APIHash},
		{"phone_number", req.Credentials.PhoneNumber},
		{"name", req.Credentials.Name},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := form.WriteField(field.name, field.value); err != nil {
			return "", fmt.Errorf("encode import session request: %w", err)
		}
	}
	part, err := form.CreateFormFile("session_file", req.Filename)
	if err != nil {
		return "", fmt.Errorf("encode import session request: %w", err)
	}
	if _, err := part.Write(req.Session); err != nil {
		return "", fmt.Errorf("encode import session request: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("encode import session request: %w", err)
	}

	var payload statusResponse
	err = r.Client.do(ctx, request{
		op:          "import session",
		method:      http.MethodPost,
		path:        importSessionPath,
		body:        &body,
		contentType: form.FormDataContentType(),
	}, &payload)
	if err != nil {
		return "", err
	}
	return payload.Message, nil
}

func (r AccountRegistry) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var payload accountsResponse
	if err := r.Client.do(ctx, request{op: "list accounts", method: http.MethodGet, path: accountsPath}, &payload); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(payload.Accounts))
	for _, item := range payload.Accounts {
		accounts = append(accounts, domain.Account{
			ID:          domain.AccountID(item.ID),
			APIID:       string(item.APIID),
			APIHash:     item.APIHash,
			PhoneNumber: item.PhoneNumber,
			Name:        item.Name,
			IsConnected: item.IsConnected,
			CreatedAt:   parseRemoteTime(item.CreatedAt),
		})
	}
	return accounts, nil
}

func (r AccountRegistry) DeleteAccount(ctx context.Context, id domain.AccountID) error {
	return r.Client.do(ctx, request{
		op:     "delete account",
		method: http.MethodDelete,
		path:   accountsPath + id.String(),
	}, nil)
}

// CheckConnection re-probes the account session. A probe that failed on the
// remote side is reported as an error, not as disconnected.
func (r AccountRegistry) CheckConnection(ctx context.Context, id domain.AccountID) (bool, error) {
	var payload checkStatusResponse
	err := r.Client.do(ctx, request{
		op:     "check connection",
		method: http.MethodPost,
		path:   accountsPath + id.String() + "/check-status",
	}, &payload)
	if err != nil {
		return false, err
	}
	if payload.Status == "error" {
		return false, &domain.RemoteError{Op: "check connection", Detail: strings.TrimSpace(payload.Message)}
	}
	return payload.IsConnected, nil
}

var remoteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseRemoteTime parses the backend's timestamps; zone-less values are UTC.
// Unparseable input yields the zero time.
func parseRemoteTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range remoteTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
