package domain

import (
	"strconv"
	"strings"
	"time"
)

type AccountID int64

func (id AccountID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseAccountID(raw string) (AccountID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, &ValidationError{Field: "account", Reason: "must be a positive number"}
	}
	return AccountID(n), nil
}

type Account struct {
	ID          AccountID
	APIID       string
	APIHash     string
	PhoneNumber string
	Name        string
	IsConnected bool
	CreatedAt   time.Time
}

// Label is the name when set, else the phone number.
func (a Account) Label() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return a.PhoneNumber
}

func (a Account) Credentials() Credentials {
	return Credentials{
		APIID:       a.APIID,
		APIHash:     a.APIHash,
		PhoneNumber: a.PhoneNumber,
		Name:        a.Name,
	}
}

// Credentials is the API credential pair plus the phone number used to
// register an account. Name is optional.
type Credentials struct {
	APIID       string
	APIHash     string
	PhoneNumber string
	Name        string
}

func (c Credentials) Normalize() Credentials {
	return Credentials{
		APIID:       strings.TrimSpace(c.APIID),
		APIHash:     strings.TrimSpace(c.APIHash),
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
		Name:        strings.TrimSpace(c.Name),
	}
}

func (c Credentials) Validate() error {
	c = c.Normalize()
	if c.APIID == "" {
		return &ValidationError{Field: "api_id"}
	}
	if _, err := strconv.ParseInt(c.APIID, 10, 64); err != nil {
		return &ValidationError{Field: "api_id", Reason: "must be a number"}
	}
	if c.APIHash == "" {
		return &ValidationError{Field: "api_hash"}
	}
	if c.PhoneNumber == "" {
		return &ValidationError{Field: "phone_number"}
	}
	return nil
}

func FindAccount(accounts []Account, id AccountID) (Account, bool) {
	for _, account := range accounts {
		if account.ID == id {
			return account, true
		}
	}
	return Account{}, false
}

func ConnectedAccounts(accounts []Account) []Account {
	connected := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		if account.IsConnected {
			connected = append(connected, account)
		}
	}
	return connected
}
