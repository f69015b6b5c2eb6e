package domain

import "fmt"

type ZoneKind string

const (
	ZoneHeader ZoneKind = "header"
	ZoneTable  ZoneKind = "table"
	ZoneFooter ZoneKind = "footer"
	ZoneLogo   ZoneKind = "logo"
	ZoneOther  ZoneKind = "other"
)

// Zone is a classified layout region. All coordinates are ratios relative
// to the full image so signatures from different scanner resolutions stay
// comparable.
type Zone struct {
	Kind   ZoneKind `json:"kind" yaml:"kind"`
	X      float64  `json:"x" yaml:"x"`
	Y      float64  `json:"y" yaml:"y"`
	Width  float64  `json:"width" yaml:"width"`
	Height float64  `json:"height" yaml:"height"`
	Area   float64  `json:"area" yaml:"area"`
}

// StructuralSignature is a scale/DPI-invariant descriptor of a document
// layout. Zones are ordered top to bottom. Immutable once computed.
type StructuralSignature struct {
	Zones        []Zone  `json:"zones" yaml:"zones"`
	ContentRatio float64 `json:"content_ratio" yaml:"content_ratio"`
}

func (s StructuralSignature) ZoneCount() int { return len(s.Zones) }

func (s StructuralSignature) Validate() error {
	if s.ContentRatio < 0 || s.ContentRatio > 1 {
		return fmt.Errorf("content ratio %.4f outside [0,1]", s.ContentRatio)
	}
	for i, z := range s.Zones {
		for name, v := range map[string]float64{
			"x": z.X, "y": z.Y, "width": z.Width, "height": z.Height, "area": z.Area,
		} {
			if v < 0 || v > 1 {
				return fmt.Errorf("zone %d %s ratio %.4f outside [0,1]", i, name, v)
			}
		}
	}
	return nil
}

// ZonesOfKind returns zones of one kind preserving top-to-bottom order.
func (s StructuralSignature) ZonesOfKind(kind ZoneKind) []Zone {
	var out []Zone
	for _, z := range s.Zones {
		if z.Kind == kind {
			out = append(out, z)
		}
	}
	return out
}
