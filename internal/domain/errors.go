package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")

	// ErrSinFolios: no queda ningún folio disponible en los rangos CAF
	// configurados para el tipo/ambiente. Requiere cargar un nuevo CAF.
	ErrSinFolios = errors.New("no hay folios disponibles")

	// ErrRangoSolapado: el rango CAF a importar se solapa con uno existente
	// del mismo tipo y ambiente.
	ErrRangoSolapado = errors.New("el rango de folios se solapa con uno existente")
)
