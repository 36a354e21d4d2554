package sii

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateRUT valida que el RUT (con o sin puntos) tenga un dígito verificador
// correcto según el algoritmo módulo 11 del Registro Civil.
// rut puede ser "76.192.083-9", "76192083-9" o "76192083K".
func ValidateRUT(rut string) error {
	cuerpo, dv, err := splitRUT(rut)
	if err != nil {
		return err
	}
	esperado := computeDV(cuerpo)
	if dv != esperado {
		return fmt.Errorf("sii: dígito verificador del RUT inválido: esperado %c, recibido %c", esperado, dv)
	}
	return nil
}

// ComputeDV calcula el dígito verificador para el cuerpo numérico del RUT.
// Útil para completar el RUT antes de armar el DTE.
func ComputeDV(rut string) (byte, error) {
	cuerpo := extractDigits(rut)
	if len(cuerpo) == 0 {
		return 0, fmt.Errorf("sii: RUT sin dígitos")
	}
	return computeDV(cuerpo), nil
}

// FormatRUT normaliza el RUT a la forma canónica "cuerpo-DV" sin puntos,
// como lo exige el campo RUTEmisor/RUTRecep del DTE.
func FormatRUT(rut string) (string, error) {
	cuerpo, dv, err := splitRUT(rut)
	if err != nil {
		return "", err
	}
	return string(cuerpo) + "-" + string(dv), nil
}

// splitRUT separa cuerpo y dígito verificador. El DV puede ser dígito o K.
func splitRUT(rut string) (cuerpo []byte, dv byte, err error) {
	limpio := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == 'k' || r == 'K' {
			return unicode.ToUpper(r)
		}
		return -1
	}, rut)
	if len(limpio) < 2 {
		return nil, 0, fmt.Errorf("sii: RUT demasiado corto: %q", rut)
	}
	cuerpo = []byte(limpio[:len(limpio)-1])
	dv = limpio[len(limpio)-1]
	for _, d := range cuerpo {
		if d < '0' || d > '9' {
			return nil, 0, fmt.Errorf("sii: cuerpo del RUT contiene caracteres no numéricos: %q", rut)
		}
	}
	return cuerpo, dv, nil
}

// computeDV aplica módulo 11 con pesos cíclicos 2..7 de derecha a izquierda.
func computeDV(cuerpo []byte) byte {
	var sum, peso int
	peso = 2
	for i := len(cuerpo) - 1; i >= 0; i-- {
		sum += int(cuerpo[i]-'0') * peso
		peso++
		if peso > 7 {
			peso = 2
		}
	}
	resto := 11 - (sum % 11)
	switch resto {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + resto)
	}
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
