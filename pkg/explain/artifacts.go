package explain

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/logflow/conformflow/pkg/encoding"
	"github.com/logflow/conformflow/pkg/writer"
)

// Table lays counterfactuals out as query_id, cf_rank, the feature
// columns, distance and conformant.
func Table(columns []string, cfs []Counterfactual) *encoding.Table {
	header := append([]string{"query_id", "cf_rank"}, columns...)
	header = append(header, "distance", "conformant")
	t := encoding.NewTable(header...)
	for _, cf := range cfs {
		row := append([]string{cf.QueryID, strconv.Itoa(cf.Rank)}, cf.Row...)
		row = append(row, strconv.Itoa(cf.Distance), strconv.FormatBool(cf.Conformant))
		t.Rows = append(t.Rows, row)
	}
	return t
}

func writeArtifacts(req Request, columns []string, cfs []Counterfactual) error {
	if err := os.MkdirAll(req.ResultDir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	t := Table(columns, cfs)
	base := filepath.Join(req.ResultDir, req.ArtifactName())
	if err := writer.WriteTableCSVFile(base+".csv", t); err != nil {
		return err
	}
	return writer.WriteTableParquetFile(base+".parquet", t, writer.DefaultConfig())
}
