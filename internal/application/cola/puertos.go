// Package cola implementa la cola durable de envío al SII: encolado de
// trabajos, barrido con reintentos acotados y overrides del operador.
package cola

import "context"

// ResultadoEnvio es la respuesta de una entrega aceptada por el SII.
type ResultadoEnvio struct {
	TrackID string
	Detalle string
}

// EnviadorSII es el puerto de salida hacia el web service del SII.
// La implementación HTTP vive en infraestructura; los tests inyectan mocks.
type EnviadorSII interface {
	// EnviarDTE sube el archivo de un DTE firmado.
	EnviarDTE(ctx context.Context, archivo []byte, nombre, ambiente, token string) (*ResultadoEnvio, error)

	// EnviarInforme sube un informe XML (ej: reporte de consumo de folios).
	EnviarInforme(ctx context.Context, xml []byte, ambiente, token string) (*ResultadoEnvio, error)

	// Estado consulta el estado de un envío previo por su trackID.
	Estado(ctx context.Context, trackID, ambiente, token string) (string, error)
}

// AlmacenArchivos es el puerto del almacén protegido donde viven los XML
// pendientes de envío. Los trabajos solo guardan la referencia.
type AlmacenArchivos interface {
	// Proteger mueve un archivo externo al almacén y devuelve su referencia.
	Proteger(rutaOrigen string) (string, error)

	// Guardar escribe contenido nuevo y devuelve su referencia.
	Guardar(nombre string, datos []byte) (string, error)

	Leer(ref string) ([]byte, error)
	Eliminar(ref string) error
}
