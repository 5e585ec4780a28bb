// Package raster holds the pixel operations the export recipes are built
// from. Every function works on straight (non-premultiplied) alpha and
// returns a new *image.NRGBA, leaving its inputs untouched.
package raster
