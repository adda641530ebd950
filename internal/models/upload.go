package models

import "io"

// Upload es un archivo de facturas listo para enviarse al backend.
type Upload struct {
	FileName   string
	Size       int64
	Content    io.Reader
	ClientID   string
	FormatHint string
}

// Download es un archivo binario devuelto por el backend (plantilla Comiagro).
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}
