// Package importer parses TRD rows out of uploaded CSV and XLSX files.
// Parsing errors are reported per row with the originating row number;
// a malformed row never aborts the rest of the file.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FilaTRD is one parsed retention row. Fila is the 1-based source row
// number (header excluded) used in error reports.
type FilaTRD struct {
	Fila               int
	CodigoNodo         string
	RetencionGestion   int
	RetencionCentral   int
	Disposicion        string
	SoporteFisico      bool
	SoporteElectronico bool
	Procedimiento      string
}

type ErrorFila struct {
	Fila    int
	Mensaje string
}

func (e ErrorFila) Error() string {
	return fmt.Sprintf("fila %d: %s", e.Fila, e.Mensaje)
}

// Expected column order, matching the export template:
// codigo_nodo, retencion_gestion, retencion_central, disposicion,
// soporte_fisico, soporte_electronico, procedimiento
const columnasEsperadas = 7

// ParseCSV reads TRD rows from a comma-separated file with a header row.
func ParseCSV(r io.Reader) ([]FilaTRD, []ErrorFila, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("no se pudo leer el archivo CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("el archivo está vacío")
	}

	return parseRecords(records[1:])
}

// ParseXLSX reads TRD rows from the first sheet of an Excel workbook with
// a header row.
func ParseXLSX(r io.Reader) ([]FilaTRD, []ErrorFila, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("no se pudo leer el archivo XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("el libro no tiene hojas")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("no se pudo leer la hoja %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("el archivo está vacío")
	}

	return parseRecords(rows[1:])
}

func parseRecords(records [][]string) ([]FilaTRD, []ErrorFila, error) {
	filas := make([]FilaTRD, 0, len(records))
	var errores []ErrorFila

	for i, record := range records {
		numFila := i + 1

		fila, err := parseFila(numFila, record)
		if err != nil {
			errores = append(errores, ErrorFila{Fila: numFila, Mensaje: err.Error()})
			continue
		}
		filas = append(filas, fila)
	}

	return filas, errores, nil
}

func parseFila(numFila int, record []string) (FilaTRD, error) {
	// XLSX readers drop trailing empty cells, so a row with an empty
	// procedimiento arrives with six columns. Pad before indexing.
	if len(record) < columnasEsperadas-1 {
		return FilaTRD{}, fmt.Errorf("se esperaban %d columnas, hay %d", columnasEsperadas, len(record))
	}
	for len(record) < columnasEsperadas {
		record = append(record, "")
	}

	codigo := strings.TrimSpace(record[0])
	if codigo == "" {
		return FilaTRD{}, fmt.Errorf("el código del nodo está vacío")
	}

	gestion, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return FilaTRD{}, fmt.Errorf("retención en gestión inválida: %q", record[1])
	}
	central, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil {
		return FilaTRD{}, fmt.Errorf("retención en central inválida: %q", record[2])
	}

	return FilaTRD{
		Fila:               numFila,
		CodigoNodo:         codigo,
		RetencionGestion:   gestion,
		RetencionCentral:   central,
		Disposicion:        strings.ToUpper(strings.TrimSpace(record[3])),
		SoporteFisico:      parseBool(record[4]),
		SoporteElectronico: parseBool(record[5]),
		Procedimiento:      strings.TrimSpace(record[6]),
	}, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "si", "sí", "x", "true":
		return true
	}
	return false
}
