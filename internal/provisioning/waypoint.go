package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/location"
	"github.com/aws/aws-sdk-go-v2/service/location/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	nameSuffixLen  = 8
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// locationAPI is the minimal Amazon Location interface required by Waypoint.
// Defined here for testability.
type locationAPI interface {
	CreateMap(ctx context.Context, in *location.CreateMapInput, optFns ...func(*location.Options)) (*location.CreateMapOutput, error)
	CreateGeofenceCollection(ctx context.Context, in *location.CreateGeofenceCollectionInput, optFns ...func(*location.Options)) (*location.CreateGeofenceCollectionOutput, error)
	PutGeofence(ctx context.Context, in *location.PutGeofenceInput, optFns ...func(*location.Options)) (*location.PutGeofenceOutput, error)
	BatchDeleteGeofence(ctx context.Context, in *location.BatchDeleteGeofenceInput, optFns ...func(*location.Options)) (*location.BatchDeleteGeofenceOutput, error)
	CreateTracker(ctx context.Context, in *location.CreateTrackerInput, optFns ...func(*location.Options)) (*location.CreateTrackerOutput, error)
	AssociateTrackerConsumer(ctx context.Context, in *location.AssociateTrackerConsumerInput, optFns ...func(*location.Options)) (*location.AssociateTrackerConsumerOutput, error)
	DeleteMap(ctx context.Context, in *location.DeleteMapInput, optFns ...func(*location.Options)) (*location.DeleteMapOutput, error)
	DeleteGeofenceCollection(ctx context.Context, in *location.DeleteGeofenceCollectionInput, optFns ...func(*location.Options)) (*location.DeleteGeofenceCollectionOutput, error)
	DeleteTracker(ctx context.Context, in *location.DeleteTrackerInput, optFns ...func(*location.Options)) (*location.DeleteTrackerOutput, error)
}

// objectAPI reads the default geofence document.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Stack identifies the CloudFormation stack that owns the resources.
type Stack struct {
	Name      string
	Region    string
	AccountID string
}

// ParseStackID extracts the stack name, region and account from a stack ARN
// such as arn:aws:cloudformation:us-east-1:123456789012:stack/name/guid.
func ParseStackID(stackID string) (Stack, error) {
	fields := strings.Split(stackID, ":")
	parts := strings.Split(stackID, "/")
	if len(fields) < 6 || len(parts) < 3 {
		return Stack{}, fmt.Errorf("provisioning: malformed stack id %q", stackID)
	}
	s := Stack{Name: parts[len(parts)-2], Region: fields[3], AccountID: fields[4]}
	if s.Name == "" || s.Region == "" || s.AccountID == "" {
		return Stack{}, fmt.Errorf("provisioning: malformed stack id %q", stackID)
	}
	return s, nil
}

// GeofenceCollectionARN builds the collection ARN, which the create call
// does not return.
func GeofenceCollectionARN(region, accountID, collection string) string {
	return fmt.Sprintf("arn:aws:geo:%s:%s:geofencecollection/%s", region, accountID, collection)
}

// DefaultGeofenceID is the id of the store geofence within a collection.
func DefaultGeofenceID(resourceName string) string {
	return resourceName + "-default-geofence"
}

// Waypoint manages the map, geofence collection and tracker that share one
// generated resource name.
type Waypoint struct {
	geo         locationAPI
	objects     objectAPI
	bucket      string
	geofenceKey string
	mapStyle    string
	suffix      func() string
}

// New creates a Waypoint provisioner. The default geofence is read from
// s3://bucket/geofenceKey.
func New(geo locationAPI, objects objectAPI, bucket, geofenceKey, mapStyle string) (*Waypoint, error) {
	if geo == nil {
		return nil, errors.New("provisioning: location api must not be nil")
	}
	if objects == nil {
		return nil, errors.New("provisioning: s3 api must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("provisioning: resource bucket must not be empty")
	}
	return &Waypoint{
		geo:         geo,
		objects:     objects,
		bucket:      bucket,
		geofenceKey: geofenceKey,
		mapStyle:    mapStyle,
		suffix:      randomSuffix,
	}, nil
}

func randomSuffix() string {
	b := make([]byte, nameSuffixLen)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// Create provisions a new set of resources for stack and returns their
// shared name. The name is returned even when a step fails so the resources
// already created can be found and deleted.
func (w *Waypoint) Create(ctx context.Context, stack Stack, withGeofence bool) (string, error) {
	name := stack.Name + "-" + w.suffix()

	slog.Info("creating map", "name", name, "style", w.mapStyle)
	if _, err := w.geo.CreateMap(ctx, &location.CreateMapInput{
		MapName:       aws.String(name),
		Configuration: &types.MapConfiguration{Style: aws.String(w.mapStyle)},
		Description:   aws.String("Map belonging to CloudFormation Stack " + stack.Name),
	}); err != nil {
		return name, fmt.Errorf("provisioning: CreateMap: %w", err)
	}

	slog.Info("creating geofence collection", "name", name)
	if _, err := w.geo.CreateGeofenceCollection(ctx, &location.CreateGeofenceCollectionInput{
		CollectionName: aws.String(name),
		Description:    aws.String("Collection belonging to CloudFormation Stack " + stack.Name),
	}); err != nil {
		return name, fmt.Errorf("provisioning: CreateGeofenceCollection: %w", err)
	}

	if withGeofence {
		if err := w.putDefaultGeofence(ctx, name); err != nil {
			return name, err
		}
	}

	slog.Info("creating tracker", "name", name)
	if _, err := w.geo.CreateTracker(ctx, &location.CreateTrackerInput{
		TrackerName: aws.String(name),
		Description: aws.String("Tracker belonging to CloudFormation Stack " + stack.Name),
	}); err != nil {
		return name, fmt.Errorf("provisioning: CreateTracker: %w", err)
	}

	arn := GeofenceCollectionARN(stack.Region, stack.AccountID, name)
	slog.Info("associating tracker with geofence collection", "tracker", name, "consumerArn", arn)
	if _, err := w.geo.AssociateTrackerConsumer(ctx, &location.AssociateTrackerConsumerInput{
		TrackerName: aws.String(name),
		ConsumerArn: aws.String(arn),
	}); err != nil {
		return name, fmt.Errorf("provisioning: AssociateTrackerConsumer: %w", err)
	}

	slog.Info("creation complete", "name", name)
	return name, nil
}

// Update adds or removes the default geofence when the flag changed.
func (w *Waypoint) Update(ctx context.Context, name string, hadGeofence, withGeofence bool) error {
	if hadGeofence == withGeofence {
		slog.Info("update complete, nothing changed", "name", name)
		return nil
	}
	if withGeofence {
		return w.putDefaultGeofence(ctx, name)
	}

	id := DefaultGeofenceID(name)
	slog.Info("deleting geofence", "geofenceId", id)
	out, err := w.geo.BatchDeleteGeofence(ctx, &location.BatchDeleteGeofenceInput{
		CollectionName: aws.String(name),
		GeofenceIds:    []string{id},
	})
	if isNotFound(err) {
		slog.Warn("geofence could not be deleted as it does not exist", "geofenceId", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("provisioning: BatchDeleteGeofence: %w", err)
	}
	for _, e := range out.Errors {
		msg := ""
		if e.Error != nil {
			msg = aws.ToString(e.Error.Message)
		}
		slog.Warn("geofence could not be deleted", "geofenceId", aws.ToString(e.GeofenceId), "message", msg)
	}
	return nil
}

// Delete removes the map, collection and tracker. Resources that are
// already gone are skipped.
func (w *Waypoint) Delete(ctx context.Context, name string) error {
	steps := []struct {
		kind string
		run  func() error
	}{
		{"map", func() error {
			_, err := w.geo.DeleteMap(ctx, &location.DeleteMapInput{MapName: aws.String(name)})
			return err
		}},
		{"geofence collection", func() error {
			_, err := w.geo.DeleteGeofenceCollection(ctx, &location.DeleteGeofenceCollectionInput{CollectionName: aws.String(name)})
			return err
		}},
		{"tracker", func() error {
			_, err := w.geo.DeleteTracker(ctx, &location.DeleteTrackerInput{TrackerName: aws.String(name)})
			return err
		}},
	}
	for _, step := range steps {
		slog.Info("deleting "+step.kind, "name", name)
		err := step.run()
		if isNotFound(err) {
			slog.Warn(step.kind+" does not exist, nothing to delete", "name", name)
			continue
		}
		if err != nil {
			return fmt.Errorf("provisioning: delete %s %q: %w", step.kind, name, err)
		}
	}
	slog.Info("deletion complete", "name", name)
	return nil
}

func (w *Waypoint) putDefaultGeofence(ctx context.Context, name string) error {
	polygon, err := w.loadGeofence(ctx)
	if err != nil {
		return err
	}
	id := DefaultGeofenceID(name)
	slog.Info("creating default geofence", "geofenceId", id, "rings", len(polygon))
	if _, err := w.geo.PutGeofence(ctx, &location.PutGeofenceInput{
		CollectionName: aws.String(name),
		GeofenceId:     aws.String(id),
		Geometry:       &types.GeofenceGeometry{Polygon: polygon},
	}); err != nil {
		return fmt.Errorf("provisioning: PutGeofence: %w", err)
	}
	return nil
}

// geofenceDocument is the subset of a GeoJSON FeatureCollection read for the
// default geofence.
type geofenceDocument struct {
	Features []struct {
		Geometry struct {
			Coordinates [][][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// loadGeofence returns the polygon of the first feature in the geofence
// document.
func (w *Waypoint) loadGeofence(ctx context.Context) ([][][]float64, error) {
	out, err := w.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.geofenceKey),
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning: GetObject s3://%s/%s: %w", w.bucket, w.geofenceKey, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("provisioning: read geofence: %w", err)
	}
	var doc geofenceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("provisioning: decode geofence: %w", err)
	}
	if len(doc.Features) == 0 || len(doc.Features[0].Geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("provisioning: geofence s3://%s/%s has no polygon", w.bucket, w.geofenceKey)
	}
	return doc.Features[0].Geometry.Coordinates, nil
}

func isNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	return errors.As(err, &nf)
}
