package trinoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// DataSet is a fully materialized query result.
type DataSet struct {
	QueryId string
	Columns []Column
	Rows    []QueryRow
}

// Len returns the number of rows.
func (d *DataSet) Len() int {
	return len(d.Rows)
}

// GetAll runs query and drains every batch into memory. Row values are
// decoded with json.Number for numbers, so no precision is lost before the
// caller converts them.
func (s *Session) GetAll(ctx context.Context, query string, opts ...RequestOption) (*DataSet, error) {
	qr, _, err := s.Query(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	ds := &DataSet{QueryId: qr.Id}
	collect := func(batch *QueryResults) error {
		if len(ds.Columns) == 0 && len(batch.Columns) > 0 {
			ds.Columns = batch.Columns
		}
		rows, err := decodeRows(batch.Data)
		if err != nil {
			return err
		}
		ds.Rows = append(ds.Rows, rows...)
		return nil
	}

	if err := collect(qr); err != nil {
		return nil, fmt.Errorf("query %s: %w", qr.Id, err)
	}
	if err := qr.Drain(ctx, collect); err != nil {
		return nil, err
	}
	if len(ds.Columns) == 0 {
		ds.Columns = qr.Columns
	}
	return ds, nil
}

func decodeRows(data []json.RawMessage) ([]QueryRow, error) {
	if len(data) == 0 {
		return nil, nil
	}
	rows := make([]QueryRow, len(data))
	for i, raw := range data {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&rows[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row data: %w", err)
		}
	}
	return rows, nil
}
