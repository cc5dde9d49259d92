package topology

const (
	// TagManagedBy marks every taggable resource declared by aztopo
	TagManagedBy = "aztopo.netlab.dev/managed-by"
	// TagResourceGroup records the resource group the topology was built for
	TagResourceGroup = "aztopo.netlab.dev/resource-group"
	// TagResourceType records the topology kind of the resource
	TagResourceType = "aztopo.netlab.dev/resource-type"
	// TagVersion records the builder version
	TagVersion = "aztopo.netlab.dev/version"

	// Version is the builder version stamped into TagVersion
	Version = "0.1.0"

	// ManagedByValue is the value used for the managed-by tag
	ManagedByValue = "aztopo"
)

// resourceTags merges user tags with the managed tags. Managed keys cannot be
// overridden from configuration.
func resourceTags(user map[string]string, resourceGroup, kind string) map[string]string {
	tags := make(map[string]string, len(user)+4)
	for k, v := range user {
		tags[k] = v
	}
	tags[TagManagedBy] = ManagedByValue
	tags[TagResourceGroup] = resourceGroup
	tags[TagResourceType] = kind
	tags[TagVersion] = Version
	return tags
}
