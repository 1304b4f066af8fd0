package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// user-serviceから返るプロフィール
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Addresses []Address `json:"addresses,omitempty"`
}

type Address struct {
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
}

// コラボレーターは共通のenvelopeで返す
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrUserNotFound はIDのユーザーが存在しないことを表す。
var ErrUserNotFound = fmt.Errorf("user not found")

type UserClient interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

type HTTPUserClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUserClient(baseURL string) *HTTPUserClient {
	return &HTTPUserClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPUserClient) GetUser(ctx context.Context, userID string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/"+userID, nil)
	if err != nil {
		return User{}, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("user service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return User{}, ErrUserNotFound
	}
	if res.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("user service: status %d", res.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return User{}, fmt.Errorf("user service: decode: %w", err)
	}
	if !env.Success {
		return User{}, ErrUserNotFound
	}

	var u User
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return User{}, fmt.Errorf("user service: decode user: %w", err)
	}
	return u, nil
}
