package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/location"

	"cstore-agent/internal/domain"
)

// placesAPI is the minimal Amazon Location interface required by PlaceFinder.
// *location.Client from aws-sdk-go-v2 satisfies this interface.
type placesAPI interface {
	SearchPlaceIndexForText(ctx context.Context, in *location.SearchPlaceIndexForTextInput, optFns ...func(*location.Options)) (*location.SearchPlaceIndexForTextOutput, error)
}

// ErrNoPlace is returned when a search yields no result.
var ErrNoPlace = errors.New("geo: no matching place")

// PlaceFinder searches a place index for points of interest.
type PlaceFinder struct {
	api       placesAPI
	indexName string
}

func NewPlaceFinder(api placesAPI, indexName string) (*PlaceFinder, error) {
	if api == nil {
		return nil, errors.New("geo: api must not be nil")
	}
	if strings.TrimSpace(indexName) == "" {
		return nil, errors.New("geo: place index name must not be empty")
	}
	return &PlaceFinder{api: api, indexName: indexName}, nil
}

// Nearest returns the best match for text biased toward the given position.
func (f *PlaceFinder) Nearest(ctx context.Context, text string, near domain.Position) (domain.Place, error) {
	out, err := f.api.SearchPlaceIndexForText(ctx, &location.SearchPlaceIndexForTextInput{
		IndexName:    aws.String(f.indexName),
		Text:         aws.String(text),
		BiasPosition: []float64{near[0], near[1]},
		MaxResults:   aws.Int32(1),
	})
	if err != nil {
		return domain.Place{}, fmt.Errorf("geo: search %q in %s: %w", text, f.indexName, err)
	}
	if out == nil || len(out.Results) == 0 || out.Results[0].Place == nil {
		return domain.Place{}, ErrNoPlace
	}

	p := out.Results[0].Place
	place := domain.Place{
		AddressNumber: aws.ToString(p.AddressNumber),
		Street:        aws.ToString(p.Street),
	}
	if p.Geometry != nil && len(p.Geometry.Point) >= 2 {
		place.Position = domain.Position{p.Geometry.Point[0], p.Geometry.Point[1]}
	}
	return place, nil
}
