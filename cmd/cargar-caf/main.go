// cargar-caf importa a la base de datos el rango de folios de un archivo CAF
// descargado del SII, sin pasar por la API HTTP.
//
// Uso: go run ./cmd/cargar-caf -ambiente cert ruta/al/caf.xml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/emisordte/emisor-dte/internal/application/folios"
	"github.com/emisordte/emisor-dte/internal/infrastructure/postgres"
	infrasii "github.com/emisordte/emisor-dte/internal/infrastructure/sii"
	"github.com/emisordte/emisor-dte/pkg/config"
	"github.com/emisordte/emisor-dte/pkg/logger"
	pkgsii "github.com/emisordte/emisor-dte/pkg/sii"
)

func main() {
	ambiente := flag.String("ambiente", pkgsii.AmbienteCert, "ambiente SII: cert, prod o dev")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "uso: cargar-caf [-ambiente cert|prod|dev] <caf.xml>")
		os.Exit(2)
	}
	if !pkgsii.EsAmbienteValido(*ambiente) {
		fmt.Fprintf(os.Stderr, "ambiente desconocido: %q\n", *ambiente)
		os.Exit(2)
	}

	xml, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "leer CAF: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	admin := folios.NewAdminCaf(postgres.NewCafRepository(pool), infrasii.ParsearCaf, logger.Nop())
	rango, err := admin.ImportarCaf(ctx, xml, *ambiente)
	if err != nil {
		fmt.Fprintf(os.Stderr, "importar CAF: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("CAF importado: id=%s tipo=%d (%s) folios %d..%d ambiente=%s\n",
		rango.ID, rango.TipoDTE, pkgsii.NombresTipoDTE[rango.TipoDTE],
		rango.Desde, rango.Hasta-1, rango.Ambiente)
}
