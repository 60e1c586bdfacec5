package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Geolocation statuses reported by the geocoder and the confidence they map to.
const (
	GeoStatusMatch        = "Match"
	GeoStatusPartialMatch = "Partial Match"

	confidenceMatch   = 9
	confidencePartial = 5
)

// Row is one voting place with a contiguous range of mesa numbers.
type Row struct {
	SectionNumber int
	SectionName   string
	CircuitNumber string
	CircuitName   string
	PlaceName     string
	Address       string
	City          string
	Neighborhood  string
	Electors      int
	Latitude      *float64
	Longitude     *float64
	GeoStatus     string
	MesaFrom      int
	MesaTo        int
}

// Confidence grades the row's geolocation from 0 to 10.
func (r Row) Confidence() int {
	if r.Latitude == nil || r.Longitude == nil {
		return 0
	}
	switch strings.TrimSpace(r.GeoStatus) {
	case GeoStatusMatch:
		return confidenceMatch
	case GeoStatusPartialMatch:
		return confidencePartial
	default:
		return 0
	}
}

func (r Row) validate() error {
	if r.SectionNumber <= 0 {
		return errors.New("section number must be positive")
	}
	if r.MesaFrom <= 0 || r.MesaTo < r.MesaFrom {
		return fmt.Errorf("invalid mesa range %d-%d", r.MesaFrom, r.MesaTo)
	}
	if r.Electors < 0 {
		return errors.New("electors cannot be negative")
	}
	return nil
}

var requiredColumns = []string{
	"Seccion", "Nombre Seccion", "Circuito", "Nombre Circuito",
	"Establecimiento", "Direccion", "electores", "Mesa desde", "Mesa Hasta",
}

// ReadRows decodes the electoral map export. Optional columns are Ciudad,
// Barrio, Latitud, Longitud and Estado Geolocalizacion.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, column := range header {
		index[strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("missing column %q", column)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := Row{
			SectionName:   field("Nombre Seccion"),
			CircuitNumber: field("Circuito"),
			CircuitName:   field("Nombre Circuito"),
			PlaceName:     field("Establecimiento"),
			Address:       field("Direccion"),
			City:          field("Ciudad"),
			Neighborhood:  field("Barrio"),
			GeoStatus:     field("Estado Geolocalizacion"),
			Latitude:      parseCoordinate(field("Latitud")),
			Longitude:     parseCoordinate(field("Longitud")),
		}
		if row.SectionNumber, err = strconv.Atoi(field("Seccion")); err != nil {
			return nil, fmt.Errorf("line %d: invalid Seccion: %w", line, err)
		}
		if row.Electors, err = strconv.Atoi(field("electores")); err != nil {
			return nil, fmt.Errorf("line %d: invalid electores: %w", line, err)
		}
		if row.MesaFrom, err = strconv.Atoi(field("Mesa desde")); err != nil {
			return nil, fmt.Errorf("line %d: invalid Mesa desde: %w", line, err)
		}
		if row.MesaTo, err = strconv.Atoi(field("Mesa Hasta")); err != nil {
			return nil, fmt.Errorf("line %d: invalid Mesa Hasta: %w", line, err)
		}
		if err := row.validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseCoordinate accepts a decimal comma. Blank or malformed values are nil.
func parseCoordinate(value string) *float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed == 0 {
		return nil
	}
	return &parsed
}
