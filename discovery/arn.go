package discovery

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"github.com/yairfalse/lightsout/types"
)

// ResourceTypeUnknown is reported for identifiers that are not valid ARNs
const ResourceTypeUnknown = "unknown"

// typeAliases maps "{service}-{subtype}" classifications onto the names
// handlers and resource defaults are keyed by.
var typeAliases = map[string]string{
	"rds-db":                       types.ResourceTypeRDSInstance,
	"autoscaling-autoScalingGroup": types.ResourceTypeAutoScalingGroup,
}

const asgNameMarker = "autoScalingGroupName/"

// ParsedARN is the normalized view of one resource identifier
type ParsedARN struct {
	ResourceType string
	ResourceID   string
	Region       string
	Metadata     types.ResourceMetadata
}

// ParseARN classifies a resource ARN and derives its id and metadata.
// It never fails: malformed input degrades to the raw string as id.
func ParseARN(raw string) ParsedARN {
	parsed, err := arn.Parse(raw)
	if err != nil || parsed.Service == "" || parsed.Resource == "" {
		return ParsedARN{ResourceType: ResourceTypeUnknown, ResourceID: raw}
	}

	out := ParsedARN{
		ResourceType: classify(parsed.Service, parsed.Resource),
		ResourceID:   raw,
		Region:       parsed.Region,
	}

	switch out.ResourceType {
	case types.ResourceTypeECSService:
		out.ResourceID, out.Metadata = parseECSService(parsed.Resource)
	case types.ResourceTypeRDSInstance, types.ResourceTypeRDSCluster:
		if i := strings.LastIndex(parsed.Resource, ":"); i >= 0 && i < len(parsed.Resource)-1 {
			out.ResourceID = parsed.Resource[i+1:]
		}
	case types.ResourceTypeEC2Instance:
		if i := strings.LastIndex(parsed.Resource, "/"); i >= 0 && i < len(parsed.Resource)-1 {
			out.ResourceID = parsed.Resource[i+1:]
		}
	case types.ResourceTypeAutoScalingGroup:
		if i := strings.Index(parsed.Resource, asgNameMarker); i >= 0 {
			if name := parsed.Resource[i+len(asgNameMarker):]; name != "" {
				out.ResourceID = name
			}
		}
	}

	return out
}

// classify builds "{service}-{subtype}" from the first token of the resource part
func classify(service, resource string) string {
	subtype := resource
	if i := strings.IndexAny(resource, "/:"); i >= 0 {
		subtype = resource[:i]
	}
	t := strings.ReplaceAll(service+"-"+subtype, ":", "-")
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

func parseECSService(resource string) (string, types.ResourceMetadata) {
	parts := strings.Split(resource, "/")
	switch {
	case len(parts) >= 3:
		cluster, service := parts[len(parts)-2], parts[len(parts)-1]
		return cluster + "/" + service, types.ResourceMetadata{
			Service: &types.ServiceMetadata{ClusterName: cluster},
		}
	case len(parts) == 2:
		return parts[1], types.ResourceMetadata{
			Service: &types.ServiceMetadata{ClusterName: types.DefaultCluster},
		}
	default:
		return resource, types.ResourceMetadata{
			Service: &types.ServiceMetadata{ClusterName: types.DefaultCluster},
		}
	}
}
