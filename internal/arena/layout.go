package arena

import (
	"hash/fnv"

	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/roomstate"
)

// Layout returns the static walls of the arena: four border walls centred on
// the edges plus the square blocks.
func Layout(a config.ArenaConfig) []geom.Rect {
	w, h, t := a.Width, a.Height, a.WallThickness
	var walls []geom.Rect
	if t > 0 {
		walls = append(walls,
			geom.CenteredRect(geom.V(w/2, 0), w, t),
			geom.CenteredRect(geom.V(w/2, h), w, t),
			geom.CenteredRect(geom.V(0, h/2), t, h),
			geom.CenteredRect(geom.V(w, h/2), t, h),
		)
	}
	for _, b := range a.Blocks {
		walls = append(walls, geom.CenteredRect(geom.V(b.X, b.Y), b.Size, b.Size))
	}
	return walls
}

// Free reports whether a circle at c with radius r touches no wall.
func Free(walls []geom.Rect, c geom.Vec2, r float64) bool {
	for _, w := range walls {
		if w.CircleOverlaps(c, r) {
			return false
		}
	}
	return true
}

var palette = []roomstate.Color{
	0xe6194b, 0x3cb44b, 0xffe119, 0x4363d8,
	0xf58231, 0x911eb4, 0x46f0f0, 0xf032e6,
}

// ColorFor picks a stable palette colour for a player id.
func ColorFor(id string) roomstate.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return palette[h.Sum32()%uint32(len(palette))]
}
