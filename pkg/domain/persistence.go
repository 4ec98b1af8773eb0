package domain

// Bucket names one persisted collection of a project. Filesystem backends
// store each bucket as <bucket>.json.
type Bucket string

// Project buckets.
const (
	BucketSystems            Bucket = "systems"
	BucketTechnologies       Bucket = "technologies"
	BucketConnections        Bucket = "connections"
	BucketConnectionElements Bucket = "connection_elements"
)

// RequiredBuckets are initialized to empty arrays when a project is created.
func RequiredBuckets() []Bucket {
	return []Bucket{BucketSystems, BucketTechnologies, BucketConnections}
}

// BucketFor returns the bucket an entity kind persists to.
func BucketFor(kind Kind) Bucket {
	switch kind {
	case KindSystem:
		return BucketSystems
	case KindTechnology:
		return BucketTechnologies
	default:
		return BucketConnectionElements
	}
}

// EntityLookup resolves full codes to entities. Absence is a normal result.
type EntityLookup interface {
	Get(fullCode string) (Entity, bool)
}
