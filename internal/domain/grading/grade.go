// Package grading содержит правила оценивания: формулы дисциплин,
// усреднение поведения, пороги статусов и концептов, а также
// калькулятор итоговой средней студента.
// Все функции пакета детерминированы и не обращаются к хранилищу.
package grading

import (
	"bytes"
	"encoding/json"
	"math"
)

// Round3 округляет значение до трёх знаков после запятой.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Grade - необязательная оценка (0..10). Нулевое значение - "оценки нет".
type Grade struct {
	value float64
	set   bool
}

// Some создаёт выставленную оценку.
func Some(v float64) Grade {
	return Grade{value: v, set: true}
}

// None - отсутствующая оценка.
var None = Grade{}

// Value возвращает оценку и признак её наличия.
func (g Grade) Value() (float64, bool) {
	return g.value, g.set
}

// IsSet возвращает true, если оценка выставлена.
func (g Grade) IsSet() bool {
	return g.set
}

// Or возвращает оценку или fallback, если её нет.
func (g Grade) Or(fallback float64) float64 {
	if !g.set {
		return fallback
	}
	return g.value
}

// Ptr возвращает указатель на значение (nil, если оценки нет).
func (g Grade) Ptr() *float64 {
	if !g.set {
		return nil
	}
	v := g.value
	return &v
}

// FromPtr создаёт Grade из указателя.
func FromPtr(p *float64) Grade {
	if p == nil {
		return None
	}
	return Some(*p)
}

// MarshalJSON кодирует отсутствующую оценку как null.
func (g Grade) MarshalJSON() ([]byte, error) {
	if !g.set {
		return []byte("null"), nil
	}
	return json.Marshal(g.value)
}

// UnmarshalJSON декодирует null как отсутствующую оценку.
func (g *Grade) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*g = None
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*g = Some(v)
	return nil
}
