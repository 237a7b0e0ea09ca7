package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// RDS instance statuses
const (
	rdsAvailable = "available"
	rdsStopped   = "stopped"
	rdsStarting  = "starting"
	rdsStopping  = "stopping"
)

// Statuses an instance may pass through on its way to the wait target
var (
	rdsStopTransitional = map[string]bool{
		rdsAvailable: true,
		rdsStopping:  true,
		"backing-up": true,
	}
	rdsStartTransitional = map[string]bool{
		rdsStopped:                        true,
		rdsStarting:                       true,
		"configuring-enhanced-monitoring": true,
		"configuring-log-exports":         true,
		"configuring-iam-database-auth":   true,
		"backing-up":                      true,
	}
)

// RDSInstanceHandler stops and starts a standalone RDS DB instance.
// Transitions take minutes, so by default it returns once the command is
// accepted; waiting for the terminal status is opt-in.
type RDSInstanceHandler struct {
	resource types.DiscoveredResource
	cfg      config.RDSInstanceDefaults
	rds      RDSAPI
	logger   *telemetry.Logger
	now      func() time.Time
}

// NewRDSInstanceHandler creates a handler for one DB instance
func NewRDSInstanceHandler(res types.DiscoveredResource, cfg config.RDSInstanceDefaults, client RDSAPI) *RDSInstanceHandler {
	return &RDSInstanceHandler{
		resource: res,
		cfg:      cfg,
		rds:      client,
		logger:   telemetry.NewLogger("handlers.rds"),
		now:      time.Now,
	}
}

// Status reads the instance's lifecycle status
func (h *RDSInstanceHandler) Status(ctx context.Context) (types.ResourceStatus, error) {
	status, err := h.currentStatus(ctx)
	if err != nil {
		return types.ResourceStatus{}, err
	}
	return types.ResourceStatus{State: status, Stopped: status == rdsStopped}, nil
}

// IsReady is true only in the terminal states available and stopped
func (h *RDSInstanceHandler) IsReady(ctx context.Context) bool {
	status, err := h.currentStatus(ctx)
	if err != nil {
		return false
	}
	return status == rdsAvailable || status == rdsStopped
}

// Stop stops an available instance
func (h *RDSInstanceHandler) Stop(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	switch status.State {
	case rdsStopped, rdsStopping:
		return unchanged(h.resource, types.ActionStop, status,
			fmt.Sprintf("Instance already %s", status.State)), nil
	case rdsAvailable:
	default:
		return refused(h.resource, types.ActionStop, status, types.ErrCodeInvalidState,
			fmt.Sprintf("Cannot stop instance in status %q (expected %q)", status.State, rdsAvailable)), nil
	}

	input := &rds.StopDBInstanceInput{DBInstanceIdentifier: aws.String(h.resource.ResourceID)}
	if !h.cfg.SkipsSnapshot() {
		input.DBSnapshotIdentifier = aws.String(h.snapshotID())
	}
	if _, err := h.rds.StopDBInstance(ctx, input); err != nil {
		return types.HandlerResult{}, fmt.Errorf("failed to stop db instance %s: %w", h.resource.ResourceID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("db_instance", h.resource.ResourceID).
		Str("previous_status", status.State).
		Bool("snapshot", input.DBSnapshotIdentifier != nil).
		Msg("db instance stop issued")

	if h.cfg.WaitForStable {
		if err := h.waitForStatus(ctx, rdsStopped, rdsStopTransitional); err != nil {
			return types.HandlerResult{}, err
		}
		return succeeded(h.resource, types.ActionStop, status,
			fmt.Sprintf("Instance stopped (was %s)", status.State)), nil
	}

	h.confirmInitiated(ctx, rdsAvailable)
	return succeeded(h.resource, types.ActionStop, status,
		fmt.Sprintf("Instance stop initiated (was %s)", status.State)), nil
}

// Start starts a stopped instance
func (h *RDSInstanceHandler) Start(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	switch status.State {
	case rdsAvailable, rdsStarting:
		return unchanged(h.resource, types.ActionStart, status,
			fmt.Sprintf("Instance already %s", status.State)), nil
	case rdsStopped:
	default:
		return refused(h.resource, types.ActionStart, status, types.ErrCodeInvalidState,
			fmt.Sprintf("Cannot start instance in status %q (expected %q)", status.State, rdsStopped)), nil
	}

	if _, err := h.rds.StartDBInstance(ctx, &rds.StartDBInstanceInput{
		DBInstanceIdentifier: aws.String(h.resource.ResourceID),
	}); err != nil {
		return types.HandlerResult{}, fmt.Errorf("failed to start db instance %s: %w", h.resource.ResourceID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("db_instance", h.resource.ResourceID).
		Str("previous_status", status.State).
		Msg("db instance start issued")

	if h.cfg.WaitForStable {
		if err := h.waitForStatus(ctx, rdsAvailable, rdsStartTransitional); err != nil {
			return types.HandlerResult{}, err
		}
		return succeeded(h.resource, types.ActionStart, status,
			fmt.Sprintf("Instance available (was %s)", status.State)), nil
	}

	h.confirmInitiated(ctx, rdsStopped)
	return succeeded(h.resource, types.ActionStart, status,
		fmt.Sprintf("Instance start initiated (was %s)", status.State)), nil
}

func (h *RDSInstanceHandler) currentStatus(ctx context.Context) (string, error) {
	out, err := h.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(h.resource.ResourceID),
	})
	if err != nil {
		var notFound *rdstypes.DBInstanceNotFoundFault
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: db instance %s", ErrResourceNotFound, h.resource.ResourceID)
		}
		return "", fmt.Errorf("failed to describe db instance %s: %w", h.resource.ResourceID, err)
	}
	if len(out.DBInstances) == 0 {
		return "", fmt.Errorf("%w: db instance %s", ErrResourceNotFound, h.resource.ResourceID)
	}
	return aws.ToString(out.DBInstances[0].DBInstanceStatus), nil
}

// waitForStatus polls until target is reached. Any status outside allowed is a hard error.
func (h *RDSInstanceHandler) waitForStatus(ctx context.Context, target string, allowed map[string]bool) error {
	err := pollUntil(ctx, h.cfg.PollInterval(), h.cfg.StableTimeout(), func(ctx context.Context) (bool, error) {
		status, err := h.currentStatus(ctx)
		if err != nil {
			return false, err
		}
		if status == target {
			return true, nil
		}
		if !allowed[status] {
			return false, fmt.Errorf("%w: db instance %s entered %q while waiting for %q",
				ErrUnexpectedState, h.resource.ResourceID, status, target)
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("db instance %s did not reach %s: %w", h.resource.ResourceID, target, err)
	}
	return nil
}

// confirmInitiated briefly polls until the instance leaves its source status.
// It only logs; the command was already accepted.
func (h *RDSInstanceHandler) confirmInitiated(ctx context.Context, source string) {
	window := h.cfg.ConfirmInitiated()
	if window <= 0 {
		return
	}

	interval := min(h.cfg.PollInterval(), window)
	err := pollUntil(ctx, interval, window, func(ctx context.Context) (bool, error) {
		status, err := h.currentStatus(ctx)
		if err != nil {
			return false, err
		}
		return status != source, nil
	})

	logger := h.logger.WithContext(ctx)
	if err != nil {
		logger.Warn().Err(err).
			Str("db_instance", h.resource.ResourceID).
			Msg("transition not yet observed")
		return
	}
	logger.Debug().
		Str("db_instance", h.resource.ResourceID).
		Msg("transition observed")
}

func (h *RDSInstanceHandler) snapshotID() string {
	return fmt.Sprintf("%s-lights-out-%s", h.resource.ResourceID, h.now().UTC().Format("20060102-150405"))
}
