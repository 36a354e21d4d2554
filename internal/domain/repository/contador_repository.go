package repository

import "context"

// ContadorRepository define el puerto del contador de folios por (tipo, ambiente).
// La corrección bajo concurrencia depende por completo del CAS: toda escritura
// se condiciona al valor previamente leído y un CAS fallido obliga al caller a
// releer y reintentar su lógica, nunca a sobrescribir a ciegas.
type ContadorRepository interface {
	// Get devuelve el último folio consumido. Si el contador no existe lo
	// inicializa implícitamente en 0.
	Get(ctx context.Context, tipoDTE int, ambiente string) (int64, error)

	// CompareAndSwap escribe nuevo solo si el valor actual es esperado.
	// Devuelve false (sin error) cuando otro proceso ganó la carrera.
	CompareAndSwap(ctx context.Context, tipoDTE int, ambiente string, esperado, nuevo int64) (bool, error)
}
