package models

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Montant is a euro amount in centimes. The store keeps DECIMAL(10,2)
// columns; carrying centimes on this side keeps balance arithmetic exact.
type Montant int64

// ParseMontant parses a decimal euro string ("123.45", "123", "-0.5").
func ParseMontant(s string) (Montant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("montant vide")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	euros, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("montant invalide %q: %w", s, err)
	}

	var cents int64
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("montant invalide %q: %w", s, err)
		}
		if len(frac) == 1 {
			cents *= 10
		}
	}

	m := Montant(euros*100 + cents)
	if neg {
		m = -m
	}
	return m, nil
}

// MontantFromEuros converts a whole-euro count.
func MontantFromEuros(euros int64) Montant {
	return Montant(euros * 100)
}

// String renders the amount as a plain decimal ("123.45").
func (m Montant) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Euros returns the amount as a float for display-only contexts.
func (m Montant) Euros() float64 {
	return float64(m) / 100
}

func (m Montant) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Montant) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "null" {
		return nil
	}
	v, err := ParseMontant(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Value implements driver.Valuer; the decimal string maps onto NUMERIC.
func (m Montant) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC, text and integer columns.
func (m *Montant) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		parsed, err := ParseMontant(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case string:
		parsed, err := ParseMontant(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case int64:
		*m = Montant(v * 100)
		return nil
	case float64:
		cents := v * 100
		if cents < 0 {
			cents -= 0.5
		} else {
			cents += 0.5
		}
		*m = Montant(int64(cents))
		return nil
	default:
		return fmt.Errorf("type %T non supporté pour Montant", value)
	}
}
