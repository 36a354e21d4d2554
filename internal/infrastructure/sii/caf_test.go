package sii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cafEjemplo = `<?xml version="1.0" encoding="ISO-8859-1"?>
<AUTORIZACION>
  <CAF version="1.0">
    <DA>
      <RE>76354771-K</RE>
      <RS>EMPRESA DE PRUEBAS LTDA</RS>
      <TD>33</TD>
      <RNG><D>101</D><H>200</H></RNG>
      <FA>2026-03-15</FA>
      <RSAPK><M>0a==</M><E>Aw==</E></RSAPK>
      <IDK>100</IDK>
    </DA>
    <FRMA algoritmo="SHA1withRSA">abc=</FRMA>
  </CAF>
</AUTORIZACION>`

func TestParsearCaf(t *testing.T) {
	info, err := ParsearCaf([]byte(cafEjemplo))
	require.NoError(t, err, "el CAF de ejemplo debería parsear")

	assert.Equal(t, 33, info.TipoDTE)
	assert.Equal(t, int64(101), info.Desde)
	assert.Equal(t, int64(200), info.Hasta, "H del CAF es inclusivo")
	assert.Equal(t, "76354771-K", info.RutEmisor)
	assert.Equal(t, "EMPRESA DE PRUEBAS LTDA", info.RazonSocial)
	assert.Equal(t, 100, info.IDK)
	assert.Equal(t, "2026-03-15", info.FechaResolucion.Format("2006-01-02"))
}

func TestParsearCaf_Latin1(t *testing.T) {
	// "PEÑALOLÉN" codificado en ISO-8859-1: Ñ=0xD1, É=0xC9.
	xml := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<AUTORIZACION><CAF version="1.0"><DA>
  <RE>76354771-K</RE>
  <RS>COMERCIAL PE` + "\xd1" + `ALOL` + "\xc9" + `N SPA</RS>
  <TD>39</TD>
  <RNG><D>1</D><H>50</H></RNG>
  <FA>2026-01-02</FA>
  <IDK>300</IDK>
</DA></CAF></AUTORIZACION>`)

	info, err := ParsearCaf(xml)
	require.NoError(t, err)
	assert.Equal(t, "COMERCIAL PEÑALOLÉN SPA", info.RazonSocial)
	assert.Equal(t, 39, info.TipoDTE)
}

func TestParsearCaf_Invalidos(t *testing.T) {
	casos := []struct {
		nombre string
		xml    string
	}{
		{"no es XML", "esto no es xml"},
		{"sin DA", `<AUTORIZACION><CAF version="1.0"></CAF></AUTORIZACION>`},
		{"sin RNG", `<AUTORIZACION><CAF><DA><RE>1-9</RE><TD>33</TD></DA></CAF></AUTORIZACION>`},
		{"rango invertido", `<AUTORIZACION><CAF><DA><RE>1-9</RE><TD>33</TD><RNG><D>200</D><H>100</H></RNG></DA></CAF></AUTORIZACION>`},
		{"TD no numérico", `<AUTORIZACION><CAF><DA><RE>1-9</RE><TD>xx</TD><RNG><D>1</D><H>10</H></RNG></DA></CAF></AUTORIZACION>`},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			_, err := ParsearCaf([]byte(c.xml))
			assert.Error(t, err)
		})
	}
}

func TestExtraerTrackID(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		id, err := ExtraerTrackID([]byte(`{"trackid": 123456}`))
		require.NoError(t, err)
		assert.Equal(t, "123456", id)
	})
	t.Run("JSON camelCase", func(t *testing.T) {
		id, err := ExtraerTrackID([]byte(`{"trackId": "789"}`))
		require.NoError(t, err)
		assert.Equal(t, "789", id)
	})
	t.Run("XML", func(t *testing.T) {
		body := `<?xml version="1.0"?><RECEPCIONDTE><STATUS>0</STATUS><TRACKID>4242</TRACKID></RECEPCIONDTE>`
		id, err := ExtraerTrackID([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, "4242", id)
	})
	t.Run("sin trackid", func(t *testing.T) {
		_, err := ExtraerTrackID([]byte(`{"status": 1}`))
		assert.Error(t, err)
	})
}

func TestEstadoRechazo(t *testing.T) {
	_, rechazo := estadoRechazo([]byte(`<RECEPCIONDTE><STATUS>0</STATUS><TRACKID>1</TRACKID></RECEPCIONDTE>`))
	assert.False(t, rechazo, "STATUS 0 es aceptación")

	codigo, rechazo := estadoRechazo([]byte(`<RECEPCIONDTE><STATUS>5</STATUS></RECEPCIONDTE>`))
	assert.True(t, rechazo)
	assert.Equal(t, "5", codigo)
}
