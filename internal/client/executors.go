package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/funkostack/funkostore/internal/syncq"
)

// FunkoExecutor replays queued funko mutations through the REST API.
type FunkoExecutor struct {
	api *Client
}

func NewFunkoExecutor(api *Client) *FunkoExecutor {
	return &FunkoExecutor{api: api}
}

func (e *FunkoExecutor) Create(ctx context.Context, payload []byte) error {
	var p FunkoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Wrap(err, "decode funko payload")
	}
	return e.api.CreateFunko(ctx, p)
}

func (e *FunkoExecutor) Update(ctx context.Context, targetID string, payload []byte) error {
	var p FunkoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Wrap(err, "decode funko payload")
	}
	return e.api.UpdateFunko(ctx, targetID, p)
}

func (e *FunkoExecutor) Delete(ctx context.Context, targetID string) error {
	return e.api.DeleteFunko(ctx, targetID)
}

// CategoryExecutor replays queued category mutations through the REST API.
type CategoryExecutor struct {
	api *Client
}

func NewCategoryExecutor(api *Client) *CategoryExecutor {
	return &CategoryExecutor{api: api}
}

func (e *CategoryExecutor) Create(ctx context.Context, payload []byte) error {
	var p CategoryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Wrap(err, "decode category payload")
	}
	return e.api.CreateCategory(ctx, p)
}

func (e *CategoryExecutor) Update(ctx context.Context, targetID string, payload []byte) error {
	var p CategoryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Wrap(err, "decode category payload")
	}
	return e.api.UpdateCategory(ctx, targetID, p)
}

func (e *CategoryExecutor) Delete(ctx context.Context, targetID string) error {
	return e.api.DeleteCategory(ctx, targetID)
}

// Executors wires both entity executors for the replayer.
func Executors(api *Client) map[string]syncq.Executor {
	return map[string]syncq.Executor{
		"funko":     NewFunkoExecutor(api),
		"categoria": NewCategoryExecutor(api),
	}
}
