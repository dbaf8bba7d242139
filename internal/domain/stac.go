package domain

import "math"

// StacVersion is the STAC specification version written into every document.
const StacVersion = "1.0.0"

// COGMediaType is the media type for cloud-optimized GeoTIFF assets.
const COGMediaType = "image/tiff; application=geotiff; profile=cloud-optimized"

// BBox is a geographic bounding box as [west, south, east, north].
type BBox [4]float64

// IsDegenerate returns true if the box has no area.
func (b BBox) IsDegenerate() bool {
	return b[0] >= b[2] || b[1] >= b[3]
}

// Union returns the smallest box containing both operands.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		math.Min(b[0], other[0]),
		math.Min(b[1], other[1]),
		math.Max(b[2], other[2]),
		math.Max(b[3], other[3]),
	}
}

// UnionBBoxes folds a list of boxes into their geographic union. The second
// return value is false for an empty list.
func UnionBBoxes(boxes []BBox) (BBox, bool) {
	if len(boxes) == 0 {
		return BBox{}, false
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out, true
}

// StacLink is a typed hyperlink between catalog documents.
type StacLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// StacAsset references the actual data file an item describes.
type StacAsset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// StacGeometry is a GeoJSON polygon geometry.
type StacGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// NewPolygonGeometry wraps a single closed ring as a GeoJSON polygon.
func NewPolygonGeometry(ring [][2]float64) StacGeometry {
	return StacGeometry{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}

// StacCatalog is the root catalog document.
type StacCatalog struct {
	Type        string     `json:"type"`
	StacVersion string     `json:"stac_version"`
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Links       []StacLink `json:"links"`
}

// StacCollection groups all items of one dataset under a shared extent.
type StacCollection struct {
	Type        string     `json:"type"`
	StacVersion string     `json:"stac_version"`
	ID          string     `json:"id"`
	Description string     `json:"description"`
	License     string     `json:"license"`
	Extent      StacExtent `json:"extent"`
	Links       []StacLink `json:"links"`
}

// StacExtent is the collection-level spatial and temporal extent.
type StacExtent struct {
	Spatial  StacSpatialExtent  `json:"spatial"`
	Temporal StacTemporalExtent `json:"temporal"`
}

// StacSpatialExtent holds one or more bounding boxes.
type StacSpatialExtent struct {
	BBox []BBox `json:"bbox"`
}

// StacTemporalExtent holds one or more [start, end] intervals, RFC 3339 or
// null for open ends.
type StacTemporalExtent struct {
	Interval [][2]*string `json:"interval"`
}

// StacItem describes a single COG with geometry reprojected to geographic
// coordinates.
type StacItem struct {
	Type        string               `json:"type"`
	StacVersion string               `json:"stac_version"`
	ID          string               `json:"id"`
	Geometry    StacGeometry         `json:"geometry"`
	BBox        BBox                 `json:"bbox"`
	Properties  map[string]any       `json:"properties"`
	Links       []StacLink           `json:"links"`
	Assets      map[string]StacAsset `json:"assets"`
}
