package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Almacen guarda los archivos XML de los DTE pendientes de envío en un
// directorio local. Los trabajos de la cola referencian los archivos por
// nombre; el contenido nunca viaja dentro del payload del trabajo.
type Almacen struct {
	dir string
}

// NewAlmacen crea el directorio si no existe.
func NewAlmacen(dir string) (*Almacen, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("crear directorio de archivos %s: %w", dir, err)
	}
	return &Almacen{dir: dir}, nil
}

// Proteger mueve el archivo de origen al almacén bajo un nombre no adivinable
// (UUID + nombre original) y devuelve la referencia para la cola. El archivo
// de origen deja de existir en su ruta original.
func (a *Almacen) Proteger(rutaOrigen string) (string, error) {
	base := filepath.Base(rutaOrigen)
	ref := uuid.NewString() + "_" + base
	destino := filepath.Join(a.dir, ref)
	if err := os.Rename(rutaOrigen, destino); err != nil {
		// Rename falla entre filesystems distintos; copiar y borrar.
		datos, rerr := os.ReadFile(rutaOrigen)
		if rerr != nil {
			return "", fmt.Errorf("mover %s al almacén: %w", rutaOrigen, err)
		}
		if werr := os.WriteFile(destino, datos, 0o644); werr != nil {
			return "", fmt.Errorf("copiar %s al almacén: %w", rutaOrigen, werr)
		}
		_ = os.Remove(rutaOrigen)
	}
	return ref, nil
}

// Guardar escribe contenido nuevo directo al almacén y devuelve la referencia.
func (a *Almacen) Guardar(nombre string, datos []byte) (string, error) {
	ref := uuid.NewString() + "_" + filepath.Base(nombre)
	if err := os.WriteFile(filepath.Join(a.dir, ref), datos, 0o644); err != nil {
		return "", fmt.Errorf("guardar %s en el almacén: %w", nombre, err)
	}
	return ref, nil
}

// Leer devuelve el contenido de una referencia. Rechaza referencias con
// separadores de ruta para que un payload corrupto no lea fuera del almacén.
func (a *Almacen) Leer(ref string) ([]byte, error) {
	if strings.ContainsAny(ref, `/\`) || ref == "" || ref == ".." {
		return nil, fmt.Errorf("referencia de archivo inválida: %q", ref)
	}
	datos, err := os.ReadFile(filepath.Join(a.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("leer archivo %s: %w", ref, err)
	}
	return datos, nil
}

// Eliminar borra una referencia; ignorar si ya no existe.
func (a *Almacen) Eliminar(ref string) error {
	if strings.ContainsAny(ref, `/\`) || ref == "" {
		return fmt.Errorf("referencia de archivo inválida: %q", ref)
	}
	err := os.Remove(filepath.Join(a.dir, ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("eliminar archivo %s: %w", ref, err)
	}
	return nil
}

// Ruta devuelve la ruta absoluta de una referencia dentro del almacén.
func (a *Almacen) Ruta(ref string) string {
	return filepath.Join(a.dir, ref)
}
