package texture

// Channel identifies one independently exportable texture slot.
type Channel int

const (
	Base Channel = iota
	Normal
	Mask
	Material
	// Glow is the emissive input. It is exported through the material but
	// baked as its own channel.
	Glow
)

// ExportChannels lists the channels an export run dispatches, in order.
var ExportChannels = []Channel{Base, Normal, Mask, Material}

// BakeChannels lists the channels the child scheduler inspects, in order.
var BakeChannels = []Channel{Base, Normal, Mask, Glow}

func (c Channel) String() string {
	switch c {
	case Base:
		return "Base"
	case Normal:
		return "Normal"
	case Mask:
		return "Mask"
	case Material:
		return "Material"
	case Glow:
		return "Glow"
	default:
		return "Unknown"
	}
}
