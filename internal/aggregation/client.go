package aggregation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/hashicorp/go-cleanhttp"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBodySize limits how much of an error response body is kept in an UpstreamError
const maxErrorBodySize = 4096

// ResourceAPI defines the resource API operations the orchestrator depends on
type ResourceAPI interface {
	// TriggerFetch starts a server-side fetch of the user's data and returns the ID of the fetch task.
	// This is not idempotent; every call triggers new aggregation work.
	TriggerFetch(ctx context.Context, accessToken, userID string) (string, error)

	// PollTask returns the events recorded for a fetch task so far
	PollTask(ctx context.Context, accessToken, userID, taskID string) ([]*Event, error)

	// ListAccounts returns the accounts of a user
	ListAccounts(ctx context.Context, accessToken, userID string) ([]*Account, error)

	// ListTransactions returns the transactions of an account; a missing collection is returned as an empty slice
	ListTransactions(ctx context.Context, accessToken, userID, accountID string) ([]*Transaction, error)
}

// Client implements ResourceAPI by calling the consumer API over HTTP using the bearer token of a session
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ResourceAPI = (*Client)(nil)

// NewClient creates a new resource API client.
// baseURL is the users collection of the API (the user ID gets appended to it); nil httpClient selects a pooled
// go-cleanhttp client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// TriggerFetch handles 'PUT {base}/{userId}/fetch'
func (client *Client) TriggerFetch(ctx context.Context, accessToken, userID string) (string, error) {
	response := new(fetchResponse)
	if err := client.do(ctx, "trigger fetch", http.MethodPut, accessToken, response, userID, "fetch"); err != nil {
		return "", err
	}
	if response.TaskID == "" {
		return "", errors.New("the resource API returned no task ID")
	}
	return response.TaskID, nil
}

// PollTask handles 'GET {base}/{userId}/tasks/{taskId}'
func (client *Client) PollTask(ctx context.Context, accessToken, userID, taskID string) ([]*Event, error) {
	response := new(taskResponse)
	if err := client.do(ctx, "poll task", http.MethodGet, accessToken, response, userID, "tasks", taskID); err != nil {
		return nil, err
	}
	return response.Events, nil
}

// ListAccounts handles 'GET {base}/{userId}/accounts'
func (client *Client) ListAccounts(ctx context.Context, accessToken, userID string) ([]*Account, error) {
	response := new(accountsResponse)
	if err := client.do(ctx, "list accounts", http.MethodGet, accessToken, response, userID, "accounts"); err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(response.Accounts))
	for _, account := range response.Accounts {
		if account != nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// ListTransactions handles 'GET {base}/{userId}/accounts/{accountId}/transactions'
func (client *Client) ListTransactions(ctx context.Context, accessToken, userID, accountID string) ([]*Transaction, error) {
	response := new(transactionsResponse)
	if err := client.do(ctx, "list transactions", http.MethodGet, accessToken, response, userID, "accounts", accountID, "transactions"); err != nil {
		return nil, err
	}
	transactions := make([]*Transaction, 0, len(response.Transactions))
	for _, transaction := range response.Transactions {
		if transaction != nil {
			transactions = append(transactions, transaction)
		}
	}
	return transactions, nil
}

func (client *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return client.baseURL + "/" + strings.Join(escaped, "/")
}

func (client *Client) do(ctx context.Context, operation, method, accessToken string, target any, segments ...string) error {
	request, err := http.NewRequestWithContext(ctx, method, client.endpoint(segments...), nil)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)
	request.Header.Set("Accept", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("resource API operation '%s' failed: %w", operation, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
		return &UpstreamError{
			Operation: operation,
			Status:    response.StatusCode,
			Body:      strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("resource API operation '%s' failed: %w", operation, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("resource API operation '%s' returned an invalid body: %w", operation, err)
	}
	return nil
}
