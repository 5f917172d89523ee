package avplay

import (
	"fmt"
	"strings"
)

// Filter modifies a converted raster in place before delivery.
type Filter interface {
	Apply(r *Raster)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(r *Raster)

func (f FilterFunc) Apply(r *Raster) { f(r) }

// FilterNegate inverts every color component.
var FilterNegate Filter = FilterFunc(func(r *Raster) {
	for y := 0; y < r.Height; y++ {
		row := r.Pix[y*r.Stride : y*r.Stride+r.Width*3]
		for i, v := range row {
			row[i] = 255 - v
		}
	}
})

// FilterGrayscale replaces each pixel with its BT.601 luma.
var FilterGrayscale Filter = FilterFunc(func(r *Raster) {
	for y := 0; y < r.Height; y++ {
		row := r.Pix[y*r.Stride : y*r.Stride+r.Width*3]
		for x := 0; x < len(row); x += 3 {
			l := uint8((77*int(row[x]) + 150*int(row[x+1]) + 29*int(row[x+2]) + 128) >> 8)
			row[x], row[x+1], row[x+2] = l, l, l
		}
	}
})

var namedFilters = map[string]Filter{
	"negate":    FilterNegate,
	"grayscale": FilterGrayscale,
	"greyscale": FilterGrayscale,
}

// ParseFilters resolves filter names, applied in the given order.
func ParseFilters(names []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		f, ok := namedFilters[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown filter %q", ErrArgument, name)
		}
		filters = append(filters, f)
	}
	return filters, nil
}
