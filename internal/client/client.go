// Package client is the REST client used by funkoctl, both for direct
// calls and as the replay executors of the offline queue.
package client

import (
	"context"
	"strconv"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/funkostack/funkostore/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FunkoPayload is the queued representation of a funko mutation. Offline
// mutations never carry a file part.
type FunkoPayload struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Categoria string  `json:"categoria"`
}

// CategoryPayload is the queued representation of a category mutation.
type CategoryPayload struct {
	Name string `json:"name"`
}

type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func New(baseURL, token string) *Client {
	return &Client{BaseURL: baseURL, Token: token, Timeout: 10 * time.Second}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) auth() gout.H {
	if c.Token == "" {
		return gout.H{}
	}
	return gout.H{"Authorization": "Bearer " + c.Token}
}

func checkCode(code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return errors.Errorf("server returned status %d", code)
}

// UnreachableError marks a transport-level failure: the request never
// produced an HTTP response. Rejections with a status code are plain
// errors.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string { return e.Err.Error() }
func (e *UnreachableError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err came from a failed transport rather
// than a server rejection, so callers can queue the operation for replay.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

func unreachable(err error, op string) error {
	return &UnreachableError{Err: errors.Wrap(err, op)}
}

// Online probes the health endpoint with a short timeout.
func (c *Client) Online() bool {
	code := 0
	err := gout.GET(c.url("/health")).
		SetTimeout(3 * time.Second).
		Code(&code).
		Do()
	return err == nil && code == 200
}

func (c *Client) Signin(ctx context.Context, username, password string) (string, *domain.User, error) {
	var resp struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	code := 0
	err := gout.POST(c.url("/api/auth/signin")).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetJSON(gout.H{"username": username, "password": password}).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return "", nil, unreachable(err, "signin request")
	}
	if err := checkCode(code); err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

func (c *Client) GetFunko(ctx context.Context, id int64) (*domain.Funko, error) {
	var funko domain.Funko
	code := 0
	err := gout.GET(c.url("/api/funkos/" + strconv.FormatInt(id, 10))).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		BindJSON(&funko).
		Code(&code).
		Do()
	if err != nil {
		return nil, unreachable(err, "get funko")
	}
	if err := checkCode(code); err != nil {
		return nil, err
	}
	return &funko, nil
}

func (c *Client) CreateFunko(ctx context.Context, p FunkoPayload) error {
	code := 0
	err := gout.POST(c.url("/api/funkos")).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetHeader(c.auth()).
		SetWWWForm(gout.H{"name": p.Name, "price": p.Price, "categoria": p.Categoria}).
		Code(&code).
		Do()
	if err != nil {
		return unreachable(err, "create funko")
	}
	return checkCode(code)
}

func (c *Client) UpdateFunko(ctx context.Context, id string, p FunkoPayload) error {
	code := 0
	err := gout.PUT(c.url("/api/funkos/" + id)).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetHeader(c.auth()).
		SetWWWForm(gout.H{"name": p.Name, "price": p.Price, "categoria": p.Categoria}).
		Code(&code).
		Do()
	if err != nil {
		return unreachable(err, "update funko")
	}
	return checkCode(code)
}

func (c *Client) DeleteFunko(ctx context.Context, id string) error {
	code := 0
	err := gout.DELETE(c.url("/api/funkos/" + id)).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetHeader(c.auth()).
		Code(&code).
		Do()
	if err != nil {
		return unreachable(err, "delete funko")
	}
	return checkCode(code)
}

func (c *Client) CreateCategory(ctx context.Context, p CategoryPayload) error {
	code := 0
	err := gout.POST(c.url("/api/categoria")).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetHeader(c.auth()).
		SetJSON(gout.H{"name": p.Name}).
		Code(&code).
		Do()
	if err != nil {
		return unreachable(err, "create category")
	}
	return checkCode(code)
}

func (c *Client) UpdateCategory(ctx context.Context, id string, p CategoryPayload) error {
	code := 0
	err := gout.PUT(c.url("/api/categoria/" + id)).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetHeader(c.auth()).
		SetJSON(gout.H{"name": p.Name}).
		Code(&code).
		Do()
	if err != nil {
		return unreachable(err, "update category")
	}
	return checkCode(code)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	code := 0
	err := gout.DELETE(c.url("/api/categoria/" + id)).
		WithContext(ctx).
		SetTimeout(c.Timeout).
		SetHeader(c.auth()).
		Code(&code).
		Do()
	if err != nil {
		return unreachable(err, "delete category")
	}
	return checkCode(code)
}
