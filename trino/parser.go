package trino

import (
	"fmt"

	"github.com/majkshkurti/connector-x/trinoclient"
)

// Parser hands out the cells of a materialized result one at a time, row
// by row with the column index advancing fastest. The caller picks the
// Produce method matching each column's Type; the Parser never consults
// the schema itself.
//
// Any error from a Produce method leaves the Parser unusable. A Parser
// must not be shared between goroutines.
type Parser struct {
	rows  []trinoclient.QueryRow
	ncols int

	currentRow int
	currentCol int
}

func newParser(rows []trinoclient.QueryRow, ncols int) *Parser {
	return &Parser{rows: rows, ncols: ncols}
}

// FetchNext reports the number of rows in the batch and that it is the
// last one. It must be called on a row boundary and panics otherwise.
func (p *Parser) FetchNext() (int, bool) {
	if p.currentCol != 0 {
		panic(fmt.Sprintf("trino: FetchNext called mid-row at (%d, %d)", p.currentRow, p.currentCol))
	}
	return len(p.rows), true
}

// Position returns the row and column of the next cell to be produced.
func (p *Parser) Position() (row, col int) {
	return p.currentRow, p.currentCol
}

// NRows returns the number of rows in the batch.
func (p *Parser) NRows() int {
	return len(p.rows)
}

// NCols returns the row width.
func (p *Parser) NCols() int {
	return p.ncols
}

// next returns the current cell and advances the cursor.
func (p *Parser) next() (row, col int, v any, err error) {
	if p.ncols == 0 || p.currentRow >= len(p.rows) {
		return p.currentRow, p.currentCol, nil,
			fmt.Errorf("%w after %d rows", ErrCursorExhausted, len(p.rows))
	}
	row, col = p.currentRow, p.currentCol
	v = p.rows[row][col]
	p.currentRow += (col + 1) / p.ncols
	p.currentCol = (col + 1) % p.ncols
	return row, col, v, nil
}
