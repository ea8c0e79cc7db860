// slotkey.go
package model

import (
	"fmt"
	"strings"
)

// SlotKey es la clave de selección que viaja en los requests de carrito y
// reserva: YYYY-MM-DD-HH:MM-HH:MM (fecha, inicio, fin, unidos por guiones).
type SlotKey struct {
	Date  string
	Start string
	End   string
}

// ParseSlotKey separa la clave en sus 5 campos fijos. La fecha ocupa los
// tres primeros campos, inicio y fin los dos últimos.
func ParseSlotKey(key string) (SlotKey, error) {
	parts := strings.Split(key, "-")
	if len(parts) != 5 {
		return SlotKey{}, fmt.Errorf("clave de slot inválida %q: se esperan 5 campos", key)
	}
	for _, p := range parts {
		if p == "" {
			return SlotKey{}, fmt.Errorf("clave de slot inválida %q: campo vacío", key)
		}
	}
	k := SlotKey{
		Date:  parts[0] + "-" + parts[1] + "-" + parts[2],
		Start: parts[3],
		End:   parts[4],
	}
	if !strings.Contains(k.Start, ":") || !strings.Contains(k.End, ":") {
		return SlotKey{}, fmt.Errorf("clave de slot inválida %q: horas mal formadas", key)
	}
	return k, nil
}

func (k SlotKey) String() string {
	return k.Date + "-" + k.Start + "-" + k.End
}
