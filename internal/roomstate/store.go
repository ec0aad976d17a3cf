// Package roomstate хранит реплицируемое состояние комнаты: игроков и текущего водящего.
//
// Store принадлежит одной горутине (циклу кадров пира). Синхронизация между
// пирами идёт только через журнал событий, поэтому мьютексов здесь нет.
package roomstate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/annelo/ghosttag/internal/geom"
)

// ErrUnknownPlayer возвращается при изменении записи отсутствующего игрока.
var ErrUnknownPlayer = errors.New("unknown player")

// Color is a packed 0xRRGGBB display colour.
type Color uint32

// RGB unpacks the colour into components.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// PlayerRecord содержит реплицируемые данные игрока
type PlayerRecord struct {
	Pos         geom.Vec2
	Transparent bool
	// Watching is a derived hint shown to other players.
	Watching bool
	Color    Color
	Name     string
}

// Store: единственное владеемое хранилище состояния комнаты
type Store struct {
	players  map[string]*PlayerRecord
	taggerID string
}

// New создает пустое хранилище
func New() *Store {
	return &Store{
		players: make(map[string]*PlayerRecord),
	}
}

// AddPlayer добавляет игрока или перезаписывает существующую запись
func (s *Store) AddPlayer(id string, pos geom.Vec2, color Color, name string) {
	s.players[id] = &PlayerRecord{
		Pos:   pos,
		Color: color,
		Name:  name,
	}
}

// ErasePlayer удаляет игрока; отсутствие игрока не является ошибкой
func (s *Store) ErasePlayer(id string) {
	delete(s.players, id)
}

// SetPosition обновляет позицию игрока
func (s *Store) SetPosition(id string, pos geom.Vec2) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	p.Pos = pos
	return nil
}

func (s *Store) SetTransparent(id string, v bool) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	p.Transparent = v
	return nil
}

func (s *Store) SetWatching(id string, v bool) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	p.Watching = v
	return nil
}

func (s *Store) SetName(id string, name string) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	p.Name = name
	return nil
}

// SetTagger перезаписывает водящего без проверки существования:
// идентификатор приходит от источника события, которому мы доверяем.
func (s *Store) SetTagger(id string) {
	s.taggerID = id
}

func (s *Store) TaggerID() string { return s.taggerID }

// Player возвращает копию записи игрока
func (s *Store) Player(id string) (PlayerRecord, bool) {
	p, ok := s.players[id]
	if !ok {
		return PlayerRecord{}, false
	}
	return *p, true
}

func (s *Store) Has(id string) bool {
	_, ok := s.players[id]
	return ok
}

func (s *Store) Len() int { return len(s.players) }

// IDs возвращает идентификаторы игроков в отсортированном порядке
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Players возвращает копию всех записей
func (s *Store) Players() map[string]PlayerRecord {
	out := make(map[string]PlayerRecord, len(s.players))
	for id, p := range s.players {
		out[id] = *p
	}
	return out
}

// Reset очищает хранилище целиком
func (s *Store) Reset() {
	s.players = make(map[string]*PlayerRecord)
	s.taggerID = ""
}

func (s *Store) lookup(id string) (*PlayerRecord, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	return p, nil
}
