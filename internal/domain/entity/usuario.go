package entity

import "time"

// Roles de operador de la API de administración.
const (
	RolAdmin    = "admin"    // gestiona CAF y usuarios
	RolOperador = "operador" // consulta la cola y reintenta envíos
)

// Usuario es un operador de la API (no un receptor de DTE).
type Usuario struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Nombre       string
	Rol          string
	Estado       string // active | disabled
	CreadoEn     time.Time
	ActualizadoEn time.Time
}
