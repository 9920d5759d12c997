package domain

// RegionSummary counts the active products of one region. Location is the
// average workshop position and is nil when no product in the region has one.
type RegionSummary struct {
	Region   string    `json:"region"`
	Count    int       `json:"count"`
	GITags   []string  `json:"gi_tags"`
	Location *Location `json:"location"`
}

// GITagSummary counts the active products carrying one GI tag.
type GITagSummary struct {
	GITag   string   `json:"gi_tag"`
	Count   int      `json:"count"`
	Regions []string `json:"regions"`
}

// RegionGroup is a region summary with its products.
type RegionGroup struct {
	RegionSummary
	Products []*Product `json:"products"`
}

// GITagGroup is a GI tag summary with its products.
type GITagGroup struct {
	GITagSummary
	Products []*Product `json:"products"`
}

type NameCount struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

// Statistics summarises the active catalogue.
type Statistics struct {
	TotalProducts  int         `json:"total_products"`
	UniqueRegions  int         `json:"unique_regions"`
	UniqueGITags   int         `json:"unique_gi_tags"`
	UniqueArtisans int         `json:"unique_artisans"`
	TopRegions     []NameCount `json:"top_regions"`
	TopGITags      []NameCount `json:"top_gi_tags"`
}
