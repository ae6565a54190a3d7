package loadings

import (
	"fmt"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// payload is the msgpack form of a table. Rows are kept in id order so that
// equal tables always encode to equal bytes.
type payload struct {
	Fields []string    `msgpack:"f"`
	IDs    []string    `msgpack:"i"`
	Rows   [][]float64 `msgpack:"r"`
}

func encodeTable(table domain.FactorTable) ([]byte, error) {
	ids := table.IDs()
	p := payload{
		Fields: table.Fields,
		IDs:    ids,
		Rows:   make([][]float64, len(ids)),
	}
	for i, id := range ids {
		p.Rows[i] = table.Loadings[id]
	}

	data, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode factor table: %w", err)
	}
	return data, nil
}

func decodeTable(data []byte) (domain.FactorTable, error) {
	var p payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return domain.FactorTable{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(p.IDs) != len(p.Rows) {
		return domain.FactorTable{}, fmt.Errorf("%w: %d ids for %d rows", ErrCorrupt, len(p.IDs), len(p.Rows))
	}

	table := domain.NewFactorTable(p.Fields...)
	for i, id := range p.IDs {
		if len(p.Rows[i]) != len(table.Fields) {
			return domain.FactorTable{}, fmt.Errorf("%w: instrument %s has %d values, want %d",
				ErrCorrupt, id, len(p.Rows[i]), len(table.Fields))
		}
		table.Loadings[id] = p.Rows[i]
	}
	return table, nil
}
