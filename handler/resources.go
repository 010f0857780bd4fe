package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"

	"cstore-agent/internal/provisioning"
)

const (
	propCreateDefaultGeofence = "CreateDefaultGeofence"
	outputResourceName        = "WaypointResourceName"
)

// provisioner manages the lifecycle of the waypoint resources.
type provisioner interface {
	Create(ctx context.Context, stack provisioning.Stack, withGeofence bool) (string, error)
	Update(ctx context.Context, name string, hadGeofence, withGeofence bool) error
	Delete(ctx context.Context, name string) error
}

// ResourcesHandler serves the CloudFormation custom resource that owns the
// map, geofence collection and tracker.
type ResourcesHandler struct {
	provisioner provisioner
}

func NewResourcesHandler(p provisioner) (*ResourcesHandler, error) {
	if p == nil {
		return nil, errors.New("handler: provisioner must not be nil")
	}
	return &ResourcesHandler{provisioner: p}, nil
}

// Handle implements cfn.CustomResourceFunction.
func (h *ResourcesHandler) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	slog.Info("custom resource event",
		"requestType", event.RequestType,
		"stackId", event.StackID,
		"logicalResourceId", event.LogicalResourceID,
		"physicalResourceId", event.PhysicalResourceID,
	)

	switch event.RequestType {
	case cfn.RequestCreate:
		stack, err := provisioning.ParseStackID(event.StackID)
		if err != nil {
			return "", nil, err
		}
		name, err := h.provisioner.Create(ctx, stack, flag(event.ResourceProperties, propCreateDefaultGeofence))
		if err != nil {
			return name, nil, err
		}
		return name, map[string]interface{}{outputResourceName: name}, nil

	case cfn.RequestUpdate:
		name := event.PhysicalResourceID
		err := h.provisioner.Update(ctx, name,
			flag(event.OldResourceProperties, propCreateDefaultGeofence),
			flag(event.ResourceProperties, propCreateDefaultGeofence),
		)
		if err != nil {
			return name, nil, err
		}
		return name, map[string]interface{}{outputResourceName: name}, nil

	case cfn.RequestDelete:
		return event.PhysicalResourceID, nil, h.provisioner.Delete(ctx, event.PhysicalResourceID)

	default:
		return event.PhysicalResourceID, nil, fmt.Errorf("handler: unsupported request type %q", event.RequestType)
	}
}

// flag reads a boolean resource property. CloudFormation passes template
// booleans as strings.
func flag(props map[string]interface{}, key string) bool {
	switch v := props[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
