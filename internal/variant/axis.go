package variant

import "strings"

// AxisKind classifies a named option axis.
type AxisKind int

const (
	AxisGeneric AxisKind = iota
	AxisColor
	AxisSize
)

func (k AxisKind) String() string {
	switch k {
	case AxisColor:
		return "color"
	case AxisSize:
		return "size"
	default:
		return "generic"
	}
}

// Recognised axis-name fragments, matched case-insensitively as substrings.
// The Vietnamese entries cover catalogs that label axes "Màu sắc" and
// "Kích thước".
var (
	ColorSynonyms = []string{"color", "colour", "màu"}
	SizeSynonyms  = []string{"size", "kích"}
)

// ClassifyAxis is the single place axis names are mapped to a kind. Color
// wins when a name matches both lists.
func ClassifyAxis(name string) AxisKind {
	n := strings.ToLower(name)
	for _, s := range ColorSynonyms {
		if strings.Contains(n, s) {
			return AxisColor
		}
	}
	for _, s := range SizeSynonyms {
		if strings.Contains(n, s) {
			return AxisSize
		}
	}
	return AxisGeneric
}

// Axis names one option dimension. Name is only significant for generic
// axes.
type Axis struct {
	Kind AxisKind
	Name string
}

var (
	ColorAxis = Axis{Kind: AxisColor, Name: "color"}
	SizeAxis  = Axis{Kind: AxisSize, Name: "size"}
)

func GenericAxis(name string) Axis {
	return Axis{Kind: AxisGeneric, Name: name}
}
