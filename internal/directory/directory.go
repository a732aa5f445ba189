package directory

import (
	"context"

	"github.com/astghikaramyan/resource-service/internal/sliceutils"
)

// Tier is a logical storage bucket/path pairing. A resource starts in
// STAGING and is moved to PERMANENT by the background migrator.
type Tier string

const (
	TierStaging   Tier = "STAGING"
	TierPermanent Tier = "PERMANENT"
)

// StorageLocation is one directory entry describing a tier, as served by
// the storage directory service at GET /storages.
type StorageLocation struct {
	Id          int64  `json:"id"`
	StorageType Tier   `json:"storageType"`
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
}

// Resolver resolves the currently authoritative storage locations.
type Resolver interface {
	ResolveLocations(ctx context.Context) []StorageLocation
}

// LocationForTier selects the entry for the given tier, or nil when the
// directory carries none. Callers select by tier, never by id.
func LocationForTier(locations []StorageLocation, tier Tier) *StorageLocation {
	return sliceutils.FindFirst(func(location StorageLocation) bool {
		return location.StorageType == tier
	}, locations)
}

// StaticFallback builds the configuration-backed location pair returned
// when the directory service is unreachable or the breaker is open.
func StaticFallback(permanentBucket, permanentPath, stagingBucket, stagingPath string) []StorageLocation {
	return []StorageLocation{
		{
			Id:          1,
			StorageType: TierPermanent,
			Bucket:      permanentBucket,
			Path:        permanentPath,
		},
		{
			Id:          2,
			StorageType: TierStaging,
			Bucket:      stagingBucket,
			Path:        stagingPath,
		},
	}
}
