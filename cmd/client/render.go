package main

import (
	"fmt"
	"math"

	"github.com/nsf/termbox-go"

	"github.com/annelo/ghosttag/internal/arena"
	"github.com/annelo/ghosttag/internal/lifecycle"
)

// Палитра игроков в терминале
var playerColors = []termbox.Attribute{
	termbox.ColorRed,
	termbox.ColorGreen,
	termbox.ColorYellow,
	termbox.ColorBlue,
	termbox.ColorMagenta,
	termbox.ColorCyan,
}

// render отображает арену и панели
func render(ctrl *lifecycle.Controller, msgs *messages) {
	// Очищаем экран
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	width, height := termbox.Size()

	// Верхняя информационная панель
	status := fmt.Sprintf("Состояние: %s | Комната: %s", ctrl.State(), ctrl.Room())
	drawText(0, 0, width, status, termbox.ColorWhite, termbox.ColorDefault)

	a := ctrl.Arena()
	if a != nil {
		v := a.View()
		drawText(0, 1, width, roundLine(v), termbox.ColorYellow, termbox.ColorDefault)
		drawArena(v, 0, 2, width, height-2-6)
	}

	// Сообщения внизу
	for i, line := range msgs.all() {
		drawText(0, height-5+i, width, line, termbox.ColorDefault, termbox.ColorDefault)
	}
	if *debugMode && a != nil {
		drawText(0, height-6, width, fmt.Sprintf("Кадр %d | Позиция %.1f,%.1f", a.Frames(), a.Position().X, a.Position().Y),
			termbox.ColorDarkGray, termbox.ColorDefault)
	}
	termbox.Flush()
}

func roundLine(v arena.View) string {
	if !v.HasRoomData {
		return "Ожидание снимка комнаты..."
	}
	role := "прячешься"
	if v.TaggerID == v.LocalID {
		role = "ВОДИШЬ"
	}
	line := fmt.Sprintf("Игроков: %d | Ты %s | Метки: %d", len(v.Players), role, len(v.Marks))
	if v.CooldownActive {
		line += fmt.Sprintf(" | Пауза %.1fс", v.CooldownRemaining.Seconds())
	}
	return line
}

// drawArena масштабирует мировые координаты в ячейки терминала.
func drawArena(v arena.View, x0, y0, w, h int) {
	if w <= 0 || h <= 0 || v.Width <= 0 || v.Height <= 0 {
		return
	}
	sx := float64(w) / v.Width
	sy := float64(h) / v.Height
	cell := func(x, y float64) (int, int) {
		return x0 + int(math.Floor(x*sx)), y0 + int(math.Floor(y*sy))
	}
	inside := func(cx, cy int) bool {
		return cx >= x0 && cx < x0+w && cy >= y0 && cy < y0+h
	}

	for _, wall := range v.Walls {
		cx0, cy0 := cell(wall.X, wall.Y)
		cx1, cy1 := cell(wall.X+wall.W, wall.Y+wall.H)
		for cy := cy0; cy < cy1; cy++ {
			for cx := cx0; cx < cx1; cx++ {
				if inside(cx, cy) {
					termbox.SetCell(cx, cy, '#', termbox.ColorWhite, termbox.ColorDarkGray)
				}
			}
		}
	}

	for _, m := range v.Marks {
		cx, cy := cell(m.Pos.X, m.Pos.Y)
		if !inside(cx, cy) {
			continue
		}
		fg := termbox.ColorDarkGray
		if m.Detected {
			fg = termbox.ColorRed
		}
		termbox.SetCell(cx, cy, 'x', fg, termbox.ColorDefault)
	}

	for i, p := range v.Players {
		cx, cy := cell(p.Pos.X, p.Pos.Y)
		if !inside(cx, cy) {
			continue
		}
		ch := 'o'
		if p.IsTagger {
			ch = '@'
		}
		fg := playerColors[i%len(playerColors)]
		if p.IsLocal {
			fg |= termbox.AttrBold
		}
		// полупрозрачных рисуем точкой, чужих ещё и тускло
		if p.Alpha < 1 {
			ch = '.'
			if !p.IsLocal {
				fg = termbox.ColorDarkGray
			}
		}
		termbox.SetCell(cx, cy, ch, fg, termbox.ColorDefault)
	}
}

// drawText выводит строку, обрезая её по ширине
func drawText(x, y, maxWidth int, text string, fg, bg termbox.Attribute) {
	i := 0
	for _, ch := range text {
		if i >= maxWidth {
			break
		}
		termbox.SetCell(x+i, y, ch, fg, bg)
		i++
	}
}
