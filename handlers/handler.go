// Package handlers holds the per-resource-type state machines that start,
// stop and inspect managed resources.
package handlers

import (
	"context"
	"errors"

	"github.com/yairfalse/lightsout/types"
)

var (
	// ErrResourceNotFound is returned when the cloud API has no record of the resource
	ErrResourceNotFound = errors.New("resource not found")

	// ErrUnexpectedState is returned when a wait observes a status outside the expected path
	ErrUnexpectedState = errors.New("unexpected resource state")

	// ErrWaitTimeout is returned when a wait exceeds its configured bound
	ErrWaitTimeout = errors.New("timed out waiting for resource")
)

// Handler is the capability every resource type implements.
// Start and Stop return an error for unexpected failures; deliberate
// refusals (invalid state, missing configuration) come back as a failed
// result with a nil error.
type Handler interface {
	Status(ctx context.Context) (types.ResourceStatus, error)
	Start(ctx context.Context) (types.HandlerResult, error)
	Stop(ctx context.Context) (types.HandlerResult, error)
	IsReady(ctx context.Context) bool
}

func newResult(r types.DiscoveredResource, action types.Action) types.HandlerResult {
	return types.HandlerResult{
		Action:       action,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Region:       r.Region,
	}
}

func succeeded(r types.DiscoveredResource, action types.Action, prev types.ResourceStatus, msg string) types.HandlerResult {
	res := newResult(r, action)
	res.Success = true
	res.Message = msg
	res.PreviousState = &prev
	return res
}

func unchanged(r types.DiscoveredResource, action types.Action, prev types.ResourceStatus, msg string) types.HandlerResult {
	res := succeeded(r, action, prev, msg)
	res.Idempotent = true
	return res
}

func refused(r types.DiscoveredResource, action types.Action, prev types.ResourceStatus, code, msg string) types.HandlerResult {
	res := newResult(r, action)
	res.Message = msg
	res.Error = code
	res.PreviousState = &prev
	return res
}
