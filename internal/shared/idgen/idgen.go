// Package idgen supplies the UUID-backed IDGenerator every bounded
// context's own narrow port asks for. Two shapes exist in the pack —
// `NewID() string` and `NewID(ctx context.Context) (string, error)` — so
// this package offers one concrete type per shape rather than forcing
// every port to agree on a signature.
package idgen

import (
	"context"

	"github.com/google/uuid"
)

// UUID satisfies the `NewID() string` shape (activation-service,
// order-orchestrator-service).
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// UUIDCtx satisfies the `NewID(ctx context.Context) (string, error)` shape
// (wallet-service, catalog-service).
type UUIDCtx struct{}

func (UUIDCtx) NewID(context.Context) (string, error) { return uuid.NewString(), nil }
