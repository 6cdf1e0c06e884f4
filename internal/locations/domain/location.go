// Package locations holds the static sensor location directory.
package locations

import "errors"

// ErrEmptyDirectory is returned when a loaded directory has no locations.
var ErrEmptyDirectory = errors.New("locations: empty directory")

// Location is a sensor site: planar coordinates and a unique id.
// Immutable for the lifetime of a run.
type Location struct {
	X  float64
	Y  float64
	ID string
}

// Directory is the ordered, immutable set of known locations, loaded once
// at startup and read-only afterwards.
type Directory struct {
	ordered []Location
	byID    map[string]Location
}

// NewDirectory builds a directory preserving the source order.
func NewDirectory(ordered []Location) (*Directory, error) {
	if len(ordered) == 0 {
		return nil, ErrEmptyDirectory
	}
	byID := make(map[string]Location, len(ordered))
	for _, location := range ordered {
		byID[location.ID] = location
	}
	return &Directory{
		ordered: append([]Location(nil), ordered...),
		byID:    byID,
	}, nil
}

// FindByID looks a location up by exact id match.
func (d *Directory) FindByID(id string) (Location, bool) {
	location, ok := d.byID[id]
	return location, ok
}

// All returns the locations in their original order.
func (d *Directory) All() []Location {
	return append([]Location(nil), d.ordered...)
}

// Len reports the number of known locations.
func (d *Directory) Len() int {
	return len(d.ordered)
}
