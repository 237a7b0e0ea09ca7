// Package discovery locates managed resources through the Resource Groups Tagging API.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	rgt "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	rgttypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/internal/filter"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// ErrScanFailed wraps any region-level failure; discovery never returns partial results
var ErrScanFailed = errors.New("tag discovery failed")

const resourcesPerPage = 100

// TaggingAPI is the subset of the tagging client used for discovery
type TaggingAPI interface {
	GetResources(ctx context.Context, params *rgt.GetResourcesInput, optFns ...func(*rgt.Options)) (*rgt.GetResourcesOutput, error)
}

// ClientFactory returns a tagging client bound to one region
type ClientFactory func(region string) TaggingAPI

// NewClientFactory builds regional tagging clients from a shared AWS config
func NewClientFactory(awsCfg aws.Config) ClientFactory {
	return func(region string) TaggingAPI {
		return rgt.NewFromConfig(awsCfg, func(o *rgt.Options) {
			o.Region = region
		})
	}
}

// TagDiscovery finds resources matching a tag filter across regions
type TagDiscovery struct {
	method        string
	tags          map[string]string
	resourceTypes []string
	regions       []string
	clients       ClientFactory
	exclude       *filter.Filter
	logger        *telemetry.Logger
}

// Option configures TagDiscovery
type Option func(*TagDiscovery)

// WithDefaultRegion sets the region scanned when none are configured
func WithDefaultRegion(region string) Option {
	return func(d *TagDiscovery) {
		if len(d.regions) == 0 && region != "" {
			d.regions = []string{region}
		}
	}
}

// New creates a TagDiscovery from the discovery section of the configuration
func New(cfg *config.Config, clients ClientFactory, opts ...Option) *TagDiscovery {
	d := &TagDiscovery{
		method:        cfg.Discovery.Method,
		tags:          cfg.Discovery.Tags,
		resourceTypes: cfg.Discovery.ResourceTypes,
		regions:       append([]string(nil), cfg.Regions...),
		clients:       clients,
		exclude:       filter.New(nil, nil, cfg.Discovery.ExcludeTags),
		logger:        telemetry.NewLogger("discovery"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.regions) == 0 {
		d.regions = []string{DefaultRegion()}
	}
	return d
}

// DefaultRegion is the region used when the configuration lists none
func DefaultRegion() string {
	for _, env := range []string{"AWS_REGION", "AWS_DEFAULT_REGION"} {
		if r := os.Getenv(env); r != "" {
			return r
		}
	}
	return "us-east-1"
}

// Regions returns the regions this discovery scans
func (d *TagDiscovery) Regions() []string {
	return d.regions
}

// Discover scans every region concurrently and returns the matches in
// region order, page order within a region.
func (d *TagDiscovery) Discover(ctx context.Context) ([]types.DiscoveredResource, error) {
	logger := d.logger.WithContext(ctx)

	if d.method != "" && d.method != config.DiscoveryMethodTags {
		logger.Warn().Str("method", d.method).Msg("unsupported discovery method, nothing discovered")
		return []types.DiscoveredResource{}, nil
	}
	if len(d.tags) == 0 {
		logger.Warn().Msg("no discovery tag filters configured, nothing discovered")
		return []types.DiscoveredResource{}, nil
	}

	ctx, span := telemetry.Tracer.Start(ctx, "discovery.Discover")
	defer span.End()

	start := time.Now()
	perRegion := make([][]types.DiscoveredResource, len(d.regions))

	g, gctx := errgroup.WithContext(ctx)
	for i, region := range d.regions {
		g.Go(func() error {
			found, err := d.scanRegion(gctx, region)
			if err != nil {
				return fmt.Errorf("%w in region %s: %w", ErrScanFailed, region, err)
			}
			perRegion[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var resources []types.DiscoveredResource
	for _, found := range perRegion {
		resources = append(resources, found...)
	}
	resources = d.exclude.FilterResources(resources)
	if resources == nil {
		resources = []types.DiscoveredResource{}
	}

	telemetry.RecordDiscovery(ctx, len(resources), time.Since(start))
	logger.Info().
		Int("resources", len(resources)).
		Strs("regions", d.regions).
		Dur("duration", time.Since(start)).
		Msg("discovery completed")

	return resources, nil
}

func (d *TagDiscovery) scanRegion(ctx context.Context, region string) ([]types.DiscoveredResource, error) {
	client := d.clients(region)
	input := &rgt.GetResourcesInput{
		TagFilters:          d.tagFilters(),
		ResourceTypeFilters: d.resourceTypes,
		ResourcesPerPage:    aws.Int32(resourcesPerPage),
	}

	var found []types.DiscoveredResource
	for {
		out, err := client.GetResources(ctx, input)
		if err != nil {
			return nil, err
		}

		for _, mapping := range out.ResourceTagMappingList {
			found = append(found, d.toResource(ctx, mapping, region))
		}

		token := aws.ToString(out.PaginationToken)
		if token == "" {
			break
		}
		input.PaginationToken = aws.String(token)
	}

	d.logger.WithContext(ctx).Debug().
		Str("region", region).
		Int("resources", len(found)).
		Msg("region scanned")

	return found, nil
}

// tagFilters sends one value per key; keys are sorted so requests are deterministic
func (d *TagDiscovery) tagFilters() []rgttypes.TagFilter {
	keys := make([]string, 0, len(d.tags))
	for k := range d.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]rgttypes.TagFilter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, rgttypes.TagFilter{
			Key:    aws.String(k),
			Values: []string{d.tags[k]},
		})
	}
	return filters
}

func (d *TagDiscovery) toResource(ctx context.Context, mapping rgttypes.ResourceTagMapping, region string) types.DiscoveredResource {
	raw := aws.ToString(mapping.ResourceARN)

	tags := make(map[string]string, len(mapping.Tags))
	for _, t := range mapping.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}

	priority, ok := types.PriorityFromTags(tags)
	if !ok {
		d.logger.WithContext(ctx).Warn().
			Str("arn", raw).
			Str("value", tags[types.TagPriority]).
			Int("default", types.DefaultPriority).
			Msg("invalid priority tag, using default")
	}

	parsed := ParseARN(raw)
	if parsed.Region == "" {
		parsed.Region = region
	}

	return types.DiscoveredResource{
		ResourceType: parsed.ResourceType,
		ARN:          raw,
		ResourceID:   parsed.ResourceID,
		Priority:     priority,
		Group:        types.GroupFromTags(tags),
		Region:       parsed.Region,
		Tags:         tags,
		Metadata:     parsed.Metadata,
	}
}
