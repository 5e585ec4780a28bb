package texture

import (
	"path"
	"path/filepath"
	"strings"
)

// BakedMarker tags file names produced by, or destined for, the external
// detail-transfer tool.
const BakedMarker = "baseTexBaked"

// StagingSubtree is where redirected outputs live inside the target.
const StagingSubtree = "do_not_edit/textures"

// GeneratedSuffix marks every file an export run writes.
const GeneratedSuffix = "_generated"

// AddSuffix inserts suffix between a file's stem and extension. An empty
// path stays empty.
func AddSuffix(filename, suffix string) string {
	if filename == "" {
		return ""
	}
	dir := filepath.Dir(filename)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filepath.Base(filename), ext)
	return filepath.Join(dir, stem+suffix+ext)
}

// ReplaceExtension swaps the extension of p for ext, which should include the
// leading dot.
func ReplaceExtension(p, ext string) string {
	if p == "" {
		return ""
	}
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// RedirectToDisk maps a destination identifier into the staging subtree.
// Both '/' and '\' separate identifier segments.
func RedirectToDisk(dest string) string {
	normalized := strings.ReplaceAll(dest, `\`, "/")
	return StagingSubtree + "/" + path.Base(normalized)
}

// DiskPath returns where the output for dest is written inside target. The id
// embeds the descriptor fingerprint so identical descriptors share a path.
func DiskPath(dest, target, id string) string {
	if dest == "" {
		return ""
	}
	redirected := filepath.FromSlash(RedirectToDisk(dest))
	return filepath.Join(target, AddSuffix(AddSuffix(redirected, "_"+id), GeneratedSuffix))
}

// DonorMaterial returns the bundled material used when a descriptor has a
// glow map but no material of its own.
func DonorMaterial(baseDir, baseDest string) string {
	name := "skin_glow.mtrl"
	if strings.Contains(baseDest, "eye") {
		name = "eye_glow.mtrl"
	}
	return filepath.Join(baseDir, "res", "materials", name)
}

// BakedSibling returns the alpha or rgb sibling written for a baked path,
// e.g. "x_baseTexBaked.png" becomes "x_alpha_baseTexBaked.png".
func BakedSibling(p, part string) string {
	return strings.ReplaceAll(p, BakedMarker, part+"_"+BakedMarker)
}

// BakedPart returns the path the transfer tool writes for one half of a
// baked child, e.g. "x_baseTexBaked.png" becomes "x_alpha.png".
func BakedPart(p, part string) string {
	return strings.ReplaceAll(p, BakedMarker, part)
}

// IsBaked reports whether p names a detail-transfer output.
func IsBaked(p string) bool { return strings.Contains(p, BakedMarker) }
