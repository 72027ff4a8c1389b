package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// MaxCells bounds the grid size ReadASCII accepts
const MaxCells = 1 << 26

// ReadASCII parses an ESRI ASCII grid. Both corner and center registration
// are accepted; NODATA cells become NaN.
func ReadASCII(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)

	header := make(map[string]float64)
	var first string
	for scanner.Scan() {
		word := scanner.Text()
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			first = word
			break
		}
		key := strings.ToLower(word)
		if !scanner.Scan() {
			return nil, fmt.Errorf("header %s has no value: %w", key, ErrInvalidGrid)
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("header %s: %v: %w", key, err, ErrInvalidGrid)
		}
		header[key] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grid: %w", err)
	}

	nc, nr := header["ncols"], header["nrows"]
	cell, hasCell := header["cellsize"]
	if !(nc >= 1) || !(nr >= 1) || !hasCell || !(cell > 0) || math.IsInf(cell, 0) {
		return nil, fmt.Errorf("header needs positive ncols, nrows and cellsize: %w", ErrInvalidGrid)
	}
	// Compare in float64 so oversized headers cannot overflow int.
	if nc*nr > MaxCells {
		return nil, fmt.Errorf("grid of %gx%g cells exceeds %d: %w", nc, nr, MaxCells, ErrInvalidGrid)
	}
	cols, rows := int(nc), int(nr)

	xll, okX := header["xllcorner"]
	if c, ok := header["xllcenter"]; ok {
		xll, okX = c-cell/2, true
	}
	yll, okY := header["yllcorner"]
	if c, ok := header["yllcenter"]; ok {
		yll, okY = c-cell/2, true
	}
	if !okX || !okY {
		return nil, fmt.Errorf("header missing lower-left origin: %w", ErrInvalidGrid)
	}

	noData, hasNoData := header["nodata_value"]

	data := make([]float64, 0, min(rows*cols, 1<<16))
	parse := func(word string) error {
		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return fmt.Errorf("cell %d: %v: %w", len(data), err, ErrInvalidGrid)
		}
		if hasNoData && v == noData {
			v = math.NaN()
		}
		data = append(data, v)
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for len(data) < rows*cols && scanner.Scan() {
		if err := parse(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grid: %w", err)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("expected %d cells, got %d: %w", rows*cols, len(data), ErrInvalidGrid)
	}

	g := &Grid{
		Data: mat.NewDense(rows, cols, data),
		Bounds: models.Bounds{
			XMin: xll,
			XMax: xll + float64(cols)*cell,
			YMin: yll,
			YMax: yll + float64(rows)*cell,
		},
		NoData: math.NaN(),
	}
	if hasNoData {
		g.NoData = noData
	}
	return g, nil
}
