package texture

import "path/filepath"

// SourceKind classifies where a channel's input comes from.
type SourceKind int

const (
	// Absent means the channel has nothing to export.
	Absent SourceKind = iota
	// Provided means the descriptor supplies the input directly.
	Provided
	// Fallback means the input is derived from a backup texture or another
	// channel of the same descriptor.
	Fallback
)

func (k SourceKind) String() string {
	switch k {
	case Provided:
		return "provided"
	case Fallback:
		return "fallback"
	default:
		return "absent"
	}
}

// Source is the resolved input for one channel.
type Source struct {
	Kind SourceKind
	Path string
}

// Present reports whether the source names an input.
func (s Source) Present() bool { return s.Kind != Absent && s.Path != "" }

// IsProvided reports whether the input came from the descriptor itself.
func (s Source) IsProvided() bool { return s.Kind == Provided && s.Path != "" }

func provided(path string) Source {
	if path == "" {
		return Source{}
	}
	return Source{Kind: Provided, Path: path}
}

func fallback(path string) Source {
	if path == "" {
		return Source{}
	}
	return Source{Kind: Fallback, Path: path}
}

// Resolved holds every input a descriptor's channel helpers need, computed
// once before any job is dispatched.
type Resolved struct {
	Base     Source
	Normal   Source
	Mask     Source
	Glow     Source
	Material Source

	// Underlay is the backup base drawn beneath the base channel.
	Underlay string
	// BackupBase is the backup base used when synthesizing masks.
	BackupBase string
	// BackupNormal is the backup normal used as a layering image.
	BackupNormal string
}

// Resolve computes the channel sources for d. Backup paths stay relative to
// baseDir except where a recipe reads them directly as an input.
func (d *Descriptor) Resolve(baseDir string) Resolved {
	r := Resolved{
		Base: provided(d.Final(Base)),
		Glow: provided(d.Glow),
	}

	if d.Backup != nil {
		r.Underlay = d.Backup.Underlay()
		r.BackupBase = d.Backup.Base
		r.BackupNormal = d.Backup.Normal
	}

	switch {
	case d.Final(Normal) != "":
		r.Normal = provided(d.Final(Normal))
	case d.Backup != nil && d.Backup.Normal != "":
		r.Normal = fallback(filepath.Join(baseDir, d.Backup.Normal))
	}

	switch {
	case d.Final(Mask) != "":
		r.Mask = provided(d.Final(Mask))
	case r.Base.Present():
		r.Mask = fallback(r.Base.Path)
	}

	switch {
	case d.Material != "":
		r.Material = provided(d.Material)
	case d.Glow != "":
		r.Material = fallback(DonorMaterial(baseDir, d.Destinations.Base))
	}
	return r
}
