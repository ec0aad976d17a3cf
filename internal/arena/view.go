package arena

import (
	"time"

	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/observer"
	"github.com/annelo/ghosttag/internal/roomstate"
)

// PlayerView is one player ready to draw.
type PlayerView struct {
	ID          string
	Name        string
	Color       roomstate.Color
	Pos         geom.Vec2
	Alpha       float64
	FacingRight bool
	Phase       float64
	Transparent bool
	Watching    bool
	IsTagger    bool
	IsLocal     bool
}

// View is a render-ready copy of the arena state.
type View struct {
	LocalID           string
	TaggerID          string
	HasRoomData       bool
	Width, Height     float64
	Radius            float64
	Walls             []geom.Rect
	Players           []PlayerView
	Marks             []observer.Mark
	CooldownActive    bool
	CooldownRemaining time.Duration
}

// View snapshots the state for a renderer. Players are sorted by id.
func (a *Arena) View() View {
	v := View{
		LocalID:           a.localID,
		TaggerID:          a.store.TaggerID(),
		HasRoomData:       a.repl.HasRoomData(),
		Width:             a.cfg.Arena.Width,
		Height:            a.cfg.Arena.Height,
		Radius:            a.cfg.Tuning.PlayerRadius,
		Walls:             append([]geom.Rect(nil), a.walls...),
		Marks:             a.obs.Marks(),
		CooldownActive:    a.tag.CooldownActive(),
		CooldownRemaining: a.tag.CooldownRemaining(),
	}
	for _, id := range a.store.IDs() {
		rec, _ := a.store.Player(id)
		pv := PlayerView{
			ID:          id,
			Name:        rec.Name,
			Color:       rec.Color,
			Pos:         rec.Pos,
			Alpha:       1,
			FacingRight: true,
			Transparent: rec.Transparent,
			Watching:    rec.Watching,
			IsTagger:    id == v.TaggerID,
			IsLocal:     id == a.localID,
		}
		if e, ok := a.interp.Entity(id); ok {
			pv.Pos = e.Pos
			pv.Alpha = e.Alpha()
			pv.FacingRight = e.FacingRight
			pv.Phase = e.Phase
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
