package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/roomstate"
)

var (
	// ErrUnknownCode is returned for event codes this build does not know.
	ErrUnknownCode = errors.New("unknown event code")
	// ErrMalformed is returned for truncated payloads or trailing bytes.
	ErrMalformed = errors.New("malformed event payload")
)

// Encode serialises an event payload. The code travels separately.
func Encode(ev Event) ([]byte, error) {
	w := &writer{}
	switch e := ev.(type) {
	case RoomSnapshot:
		if len(e.Players) > math.MaxUint16 || len(e.Round.Marks) > math.MaxUint16 {
			return nil, fmt.Errorf("encode %s: too many entries", e.Code())
		}
		w.str(e.TaggerID)
		w.u16(uint16(len(e.Players)))
		for _, p := range e.Players {
			w.str(p.ID)
			w.vec(p.Record.Pos)
			w.boolean(p.Record.Transparent)
			w.boolean(p.Record.Watching)
			w.u32(uint32(p.Record.Color))
			w.str(p.Record.Name)
		}
		w.duration(e.Round.ObserverElapsed)
		w.duration(e.Round.CooldownRemaining)
		w.boolean(e.Round.CooldownRunning)
		w.u16(uint16(len(e.Round.Marks)))
		for _, m := range e.Round.Marks {
			w.vec(m.Pos)
			w.boolean(m.Detected)
		}
	case PlayerAdd:
		w.vec(e.Pos)
		w.u32(uint32(e.Color))
		w.str(e.Name)
	case PlayerErase:
		w.str(e.ID)
	case PlayerMove:
		w.vec(e.Pos)
	case SetTransparent:
		w.boolean(e.Value)
	case SetWatching:
		w.boolean(e.Value)
	case ItTransferred:
		w.str(e.TaggerID)
	case TagRoundReset:
	case PlayerRename:
		w.str(e.Name)
	default:
		return nil, fmt.Errorf("encode %T: %w", ev, ErrUnknownCode)
	}
	if w.err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Code(), w.err)
	}
	return w.buf.Bytes(), nil
}

// Decode parses a payload of the given kind.
func Decode(code Code, payload []byte) (Event, error) {
	r := &reader{r: bytes.NewReader(payload)}
	var ev Event
	switch code {
	case CodeRoomSnapshot:
		var s RoomSnapshot
		s.TaggerID = r.str()
		n := int(r.u16())
		if r.err == nil && n > 0 {
			s.Players = make([]SnapshotPlayer, 0, n)
		}
		for i := 0; i < n && r.err == nil; i++ {
			var p SnapshotPlayer
			p.ID = r.str()
			p.Record.Pos = r.vec()
			p.Record.Transparent = r.boolean()
			p.Record.Watching = r.boolean()
			p.Record.Color = roomstate.Color(r.u32())
			p.Record.Name = r.str()
			s.Players = append(s.Players, p)
		}
		s.Round.ObserverElapsed = r.duration()
		s.Round.CooldownRemaining = r.duration()
		s.Round.CooldownRunning = r.boolean()
		m := int(r.u16())
		if r.err == nil && m > 0 {
			s.Round.Marks = make([]Mark, 0, m)
		}
		for i := 0; i < m && r.err == nil; i++ {
			s.Round.Marks = append(s.Round.Marks, Mark{Pos: r.vec(), Detected: r.boolean()})
		}
		ev = s
	case CodePlayerAdd:
		ev = PlayerAdd{Pos: r.vec(), Color: roomstate.Color(r.u32()), Name: r.str()}
	case CodePlayerErase:
		ev = PlayerErase{ID: r.str()}
	case CodePlayerMove:
		ev = PlayerMove{Pos: r.vec()}
	case CodeSetTransparent:
		ev = SetTransparent{Value: r.boolean()}
	case CodeSetWatching:
		ev = SetWatching{Value: r.boolean()}
	case CodeItTransferred:
		ev = ItTransferred{TaggerID: r.str()}
	case CodeTagRoundReset:
		ev = TagRoundReset{}
	case CodePlayerRename:
		ev = PlayerRename{Name: r.str()}
	default:
		return nil, fmt.Errorf("decode code %d: %w", code, ErrUnknownCode)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", code, ErrMalformed, r.err)
	}
	if r.r.Len() != 0 {
		return nil, fmt.Errorf("decode %s: %w: %d trailing bytes", code, ErrMalformed, r.r.Len())
	}
	return ev, nil
}

// writer и reader запоминают первую ошибку, чтобы не проверять каждое поле
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) put(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *writer) u16(v uint16)  { w.put(v) }
func (w *writer) u32(v uint32)  { w.put(v) }
func (w *writer) f64(v float64) { w.put(v) }

func (w *writer) boolean(v bool) {
	var b uint8
	if v {
		b = 1
	}
	w.put(b)
}

func (w *writer) vec(v geom.Vec2) {
	w.f64(v.X)
	w.f64(v.Y)
}

func (w *writer) duration(d time.Duration) { w.put(int64(d)) }

func (w *writer) str(s string) {
	if len(s) > math.MaxUint16 {
		if w.err == nil {
			w.err = fmt.Errorf("string of %d bytes exceeds limit", len(s))
		}
		return
	}
	w.u16(uint16(len(s)))
	if w.err == nil {
		w.buf.WriteString(s)
	}
}

type reader struct {
	r   *bytes.Reader
	err error
}

func (r *reader) get(v any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.LittleEndian, v)
}

func (r *reader) u16() uint16 {
	var v uint16
	r.get(&v)
	return v
}

func (r *reader) u32() uint32 {
	var v uint32
	r.get(&v)
	return v
}

func (r *reader) f64() float64 {
	var v float64
	r.get(&v)
	return v
}

func (r *reader) boolean() bool {
	var b uint8
	r.get(&b)
	if r.err == nil && b > 1 {
		r.err = fmt.Errorf("invalid bool byte %d", b)
	}
	return b == 1
}

func (r *reader) vec() geom.Vec2 {
	x := r.f64()
	y := r.f64()
	return geom.Vec2{X: x, Y: y}
}

func (r *reader) duration() time.Duration {
	var v int64
	r.get(&v)
	return time.Duration(v)
}

func (r *reader) str() string {
	n := int(r.u16())
	if r.err != nil {
		return ""
	}
	if n > r.r.Len() {
		r.err = fmt.Errorf("string length %d exceeds remaining %d bytes", n, r.r.Len())
		return ""
	}
	b := make([]byte, n)
	if _, err := r.r.Read(b); err != nil && n > 0 {
		r.err = err
		return ""
	}
	return string(b)
}
