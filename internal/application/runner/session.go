package runner

import (
	"fmt"
	"time"
)

// BlackoutMode decide qué pasa con las posiciones durante el blackout.
type BlackoutMode string

const (
	// BlackoutDecay solo aplica la salida por tiempo con los últimos precios.
	BlackoutDecay BlackoutMode = "decay"
	// BlackoutLiquidate cierra todo al entrar al blackout, sin detener los sets.
	BlackoutLiquidate BlackoutMode = "liquidate"
)

// Session describe el reloj de un día de simulación. Los horarios son
// offsets desde la medianoche del día simulado.
type Session struct {
	Open          time.Duration
	Close         time.Duration
	Step          time.Duration
	BlackoutStart time.Duration // inclusive
	BlackoutEnd   time.Duration // exclusive
	BlackoutMode  BlackoutMode
	EntryCutoff   time.Duration // no entries at or after
}

// DefaultSession es la sesión del mercado original: 09:00:04 a 14:54:04
// cada 8 segundos, sin datos entre 11:30 y 12:31, entradas hasta las 10:00.
func DefaultSession() Session {
	return Session{
		Open:          9*time.Hour + 4*time.Second,
		Close:         14*time.Hour + 54*time.Minute + 4*time.Second,
		Step:          8 * time.Second,
		BlackoutStart: 11*time.Hour + 30*time.Minute,
		BlackoutEnd:   12*time.Hour + 31*time.Minute,
		BlackoutMode:  BlackoutDecay,
		EntryCutoff:   10 * time.Hour,
	}
}

// Validate rechaza relojes que no avanzan o ventanas invertidas.
func (s Session) Validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("runner.Session: step must be positive, got %s", s.Step)
	}
	if s.Close < s.Open {
		return fmt.Errorf("runner.Session: close %s before open %s", s.Close, s.Open)
	}
	if s.BlackoutEnd < s.BlackoutStart {
		return fmt.Errorf("runner.Session: blackout ends %s before it starts %s", s.BlackoutEnd, s.BlackoutStart)
	}
	switch s.BlackoutMode {
	case BlackoutDecay, BlackoutLiquidate:
	default:
		return fmt.Errorf("runner.Session: unknown blackout mode %q", s.BlackoutMode)
	}
	return nil
}

// Start es el primer tick del día.
func (s Session) Start(day time.Time) time.Time { return midnight(day).Add(s.Open) }

// End es el último instante de la sesión.
func (s Session) End(day time.Time) time.Time { return midnight(day).Add(s.Close) }

// InBlackout indica si at cae en la ventana sin datos.
func (s Session) InBlackout(at time.Time) bool {
	off := at.Sub(midnight(at))
	return off >= s.BlackoutStart && off < s.BlackoutEnd
}

// EntriesAllowed indica si todavía se pueden abrir posiciones.
func (s Session) EntriesAllowed(at time.Time) bool {
	return at.Sub(midnight(at)) < s.EntryCutoff
}

// Ticks devuelve cuántos ticks tiene el día (incluidos los de blackout).
func (s Session) Ticks() int {
	return int((s.Close-s.Open)/s.Step) + 1
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
