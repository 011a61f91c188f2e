// Package simplefin is a pull client for the SimpleFIN bridge.
package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/finbridge/internal/config"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/secrets"
)

// DefaultBaseURL is the public SimpleFIN bridge endpoint.
const DefaultBaseURL = "https://beta-bridge.simplefin.org/simplefin"

// FetchError reports a failed request to the bridge. StatusCode is zero when
// no response was received.
type FetchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("simplefin: %d %s", e.StatusCode, e.Message)
	}
	return "simplefin: " + e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

// Org is the institution holding an account.
type Org struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// Transaction is one posted transaction. Positive amounts are inflows to the
// account holder.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Posted      int64           `json:"posted"`
	Payee       string          `json:"payee,omitempty"`
	Memo        string          `json:"memo,omitempty"`
}

// UnmarshalJSON decodes the amount leniently: the bridge sends it as a string
// and anything non-numeric reads as zero rather than failing the payload.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		Amount json.RawMessage `json:"amount"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.Amount = ParseAmount(aux.Amount)
	return nil
}

// ParseAmount reads a JSON string or number as a decimal. Empty, null and
// non-numeric values are zero.
func ParseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PostedAt returns the posting time in UTC.
func (t Transaction) PostedAt() time.Time { return time.Unix(t.Posted, 0).UTC() }

// Account mirrors the bridge's account object.
type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Currency     string          `json:"currency"`
	Org          Org             `json:"org"`
	Balance      decimal.Decimal `json:"balance"`
	BalanceDate  int64           `json:"balance-date"`
	Transactions []Transaction   `json:"transactions"`
}

// UnmarshalJSON decodes the balance with ParseAmount.
func (a *Account) UnmarshalJSON(b []byte) error {
	type plain Account
	aux := struct {
		*plain
		Balance json.RawMessage `json:"balance"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.Balance = ParseAmount(aux.Balance)
	return nil
}

// DisplayName is "<org> - <account>".
func (a Account) DisplayName() string {
	if a.Org.Name == "" {
		return a.Name
	}
	return a.Org.Name + " - " + a.Name
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []Account `json:"accounts"`
}

// AccountSnapshot is the balance and transactions of one account over a window.
type AccountSnapshot struct {
	AccountID    string
	Currency     string
	Balance      decimal.Decimal
	BalanceDate  time.Time
	Transactions []Transaction
}

// Client talks to the bridge with HTTP basic auth. It never retries.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	now      func() time.Time
}

// New returns a client. An empty baseURL selects DefaultBaseURL and a nil
// httpClient selects one with a 30s timeout.
func New(baseURL, username, password string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     httpClient,
		now:      time.Now,
	}
}

// NewFromSettings builds a client from runtime settings, falling back to the
// configuration file and the secrets store for the password.
func NewFromSettings(ctx context.Context, r config.Resolver, cfg config.SourceConfig, httpClient *http.Client) (*Client, error) {
	user, err := r.Value(ctx, repository.SettingSimpleFINUsername, cfg.Username)
	if err != nil {
		return nil, err
	}
	pass, err := r.Secret(ctx, repository.SettingSimpleFINPassword, cfg.Password, secrets.ProviderSimpleFIN)
	if err != nil {
		return nil, err
	}
	if user == "" || pass == "" {
		return nil, &config.ConfigError{Key: "simplefin credentials", Msg: "username or password not configured"}
	}
	return New(cfg.BaseURL, user, pass, httpClient), nil
}

// FetchAccountTransactions returns the balance and transactions posted since
// the given time (inclusive). No end date is sent so same-day postings are
// never excluded.
func (c *Client) FetchAccountTransactions(ctx context.Context, accountID string, since time.Time) (AccountSnapshot, error) {
	q := url.Values{}
	q.Set("account", accountID)
	q.Set("start-date", strconv.FormatInt(since.Unix(), 10))
	set, err := c.getAccounts(ctx, q)
	if err != nil {
		return AccountSnapshot{}, err
	}
	if len(set.Accounts) == 0 {
		return AccountSnapshot{}, &FetchError{Message: fmt.Sprintf("no account %s in response", accountID)}
	}
	a := set.Accounts[0]
	return AccountSnapshot{
		AccountID:    a.ID,
		Currency:     a.Currency,
		Balance:      a.Balance,
		BalanceDate:  time.Unix(a.BalanceDate, 0).UTC(),
		Transactions: a.Transactions,
	}, nil
}

// ListAccounts returns every account with balances only. The start date is
// set to tomorrow so the bridge returns no transactions.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	q := url.Values{}
	q.Set("balances-only", "1")
	q.Set("start-date", strconv.FormatInt(c.now().Add(24*time.Hour).Unix(), 10))
	set, err := c.getAccounts(ctx, q)
	if err != nil {
		return nil, err
	}
	return set.Accounts, nil
}

func (c *Client) getAccounts(ctx context.Context, q url.Values) (accountSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/accounts?"+q.Encode(), nil)
	if err != nil {
		return accountSet{}, &FetchError{Message: "build request", Err: err}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return accountSet{}, &FetchError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return accountSet{}, &FetchError{StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return accountSet{}, &FetchError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(http.StatusText(resp.StatusCode) + " " + truncate(string(body), 200))}
	}
	var set accountSet
	if err := json.Unmarshal(body, &set); err != nil {
		return accountSet{}, &FetchError{StatusCode: resp.StatusCode, Message: "malformed payload", Err: err}
	}
	return set, nil
}

// Credentials are the basic-auth pair carried by an access URL.
type Credentials struct {
	Username string
	Password string
}

// ErrInvalidToken is returned when a setup token cannot be decoded.
var ErrInvalidToken = errors.New("invalid setup token")

// ClaimSetupToken exchanges a one-time setup token for access credentials.
// The token is a base64 claim URL; POSTing to it returns an access URL with
// the credentials in its userinfo.
func (c *Client) ClaimSetupToken(ctx context.Context, token string) (Credentials, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claimURL := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(claimURL, "http") {
		return Credentials{}, ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return Credentials{}, &FetchError{Message: "build claim request", Err: err}
	}
	req.Header.Set("Content-Length", "0")
	resp, err := c.http.Do(req)
	if err != nil {
		return Credentials{}, &FetchError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credentials{}, &FetchError{StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Credentials{}, &FetchError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	access := strings.TrimSpace(string(body))
	u, err := url.Parse(access)
	if err != nil || !strings.HasPrefix(access, "http") {
		return Credentials{}, &FetchError{StatusCode: resp.StatusCode, Message: "invalid access url"}
	}
	pass, _ := u.User.Password()
	creds := Credentials{Username: u.User.Username(), Password: pass}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, &FetchError{StatusCode: resp.StatusCode, Message: "no credentials in access url"}
	}
	return creds, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
