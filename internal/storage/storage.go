// Package storage provides the durable key-value collaborators the cart
// store mirrors itself into.
package storage

import (
	"context"
	"errors"
)

var ErrStorage = errors.New("storage error")

// Storage is a string key-value medium surviving process restarts.
// Get reports ok=false for a missing key; that is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}
