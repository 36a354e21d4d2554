package dto

import "time"

// RegisterRequest alta de un operador.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nombre   string `json:"nombre"`
	Rol      string `json:"rol"` // admin | operador; vacío = operador
}

// LoginRequest credenciales de acceso.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UsuarioResponse vista pública de un operador (sin hash).
type UsuarioResponse struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Nombre   string    `json:"nombre"`
	Rol      string    `json:"rol"`
	CreadoEn time.Time `json:"creado_en"`
}

// LoginResponse token firmado más los datos del operador.
type LoginResponse struct {
	Token   string          `json:"token"`
	Usuario UsuarioResponse `json:"usuario"`
}
