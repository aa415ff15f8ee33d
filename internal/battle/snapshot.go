package battle

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// TroopFrame is the renderer-facing state of one troop.
type TroopFrame struct {
	ID       int     `msgpack:"id"`
	Unit     int     `msgpack:"u"`
	Faction  uint8   `msgpack:"f"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
	Angle    float64 `msgpack:"r"`
	State    string  `msgpack:"s"`
	Health   float64 `msgpack:"hp"`
	JustHit  bool    `msgpack:"jh,omitempty"`
	Carrying int     `msgpack:"c,omitempty"` // lodged projectiles
}

// UnitFrame is the renderer-facing state of one unit.
type UnitFrame struct {
	ID      int          `msgpack:"id"`
	Name    string       `msgpack:"n"`
	Type    string       `msgpack:"t"`
	Faction uint8        `msgpack:"f"`
	State   string       `msgpack:"s"`
	Alive   int          `msgpack:"a"`
	Size    int          `msgpack:"sz"`
	Anchor  Pose         `msgpack:"p"`
	Box     [][2]float64 `msgpack:"b"`
}

// ProjectileFrame is the renderer-facing state of one projectile.
type ProjectileFrame struct {
	ID      int     `msgpack:"id"`
	X       float64 `msgpack:"x"`
	Y       float64 `msgpack:"y"`
	Heading float64 `msgpack:"r"`
	Faction uint8   `msgpack:"f"`
}

// Frame is a read-only copy of the whole battle after a step.
type Frame struct {
	Tick        int               `msgpack:"tick"`
	Units       []UnitFrame       `msgpack:"us"`
	Troops      []TroopFrame      `msgpack:"ts"`
	Projectiles []ProjectileFrame `msgpack:"ps"`
}

// Snapshot copies the current state into a Frame. Dead troops are kept so
// renderers can draw bodies.
func (b *Battle) Snapshot() Frame {
	f := Frame{Tick: b.tick}
	for _, u := range b.units {
		f.Units = append(f.Units, UnitFrame{
			ID:      u.id,
			Name:    u.name,
			Type:    u.unitType.String(),
			Faction: uint8(u.faction),
			State:   u.state.String(),
			Alive:   u.LiveCount(),
			Size:    u.Size(),
			Anchor:  u.anchor,
			Box:     u.BoundingBox(),
		})
		for _, t := range u.troops {
			f.Troops = append(f.Troops, TroopFrame{
				ID:       t.id,
				Unit:     u.id,
				Faction:  uint8(t.faction),
				X:        t.x,
				Y:        t.y,
				Angle:    t.angle,
				State:    t.state.String(),
				Health:   t.health,
				JustHit:  t.justHit > 0,
				Carrying: len(t.carried),
			})
		}
	}
	for _, p := range b.projectiles {
		f.Projectiles = append(f.Projectiles, ProjectileFrame{
			ID:      p.id,
			X:       p.x,
			Y:       p.y,
			Heading: p.heading,
			Faction: uint8(p.faction),
		})
	}
	return f
}

// FrameWriter streams msgpack-encoded frames.
type FrameWriter struct {
	enc *msgpack.Encoder
	n   int
}

// NewFrameWriter writes frames to w back to back.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{enc: msgpack.NewEncoder(w)}
}

// Write encodes one frame.
func (fw *FrameWriter) Write(f Frame) error {
	if err := fw.enc.Encode(&f); err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	fw.n++
	return nil
}

// Count returns the number of frames written.
func (fw *FrameWriter) Count() int { return fw.n }

// ReadFrames decodes every frame in r until EOF.
func ReadFrames(r io.Reader) ([]Frame, error) {
	dec := msgpack.NewDecoder(r)
	var out []Frame
	for {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode frame %d: %w", len(out), err)
		}
		out = append(out, f)
	}
}
