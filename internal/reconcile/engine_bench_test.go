package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"testing"
)

func benchTable(rows int) Table {
	table := Table{Sheet: DefaultSheet, Width: QuantityColumnIndex + 1}
	for i := range rows {
		j := i % 500
		label := fmt.Sprintf("Electrode E%04d %dmm", j, 2+j%3)
		table.Rows = append(table.Rows, Row{Number: i + 1, Cells: cellsFor(label, strconv.Itoa(100+i), strconv.Itoa(i%40))})
	}
	return table
}

func benchmarkReconcile(b *testing.B, workers int) {
	names := make([]string, 0, 500)
	for i := range 500 {
		names = append(names, fmt.Sprintf("Electrode E%04d %dmm", i, 2+i%3))
	}
	cfg := DefaultConfig()
	cfg.Workers = workers
	fx := newFixture(b, cfg, names...)
	src := &staticSource{table: benchTable(2000)}

	b.ResetTimer()
	for range b.N {
		res, err := fx.engine.Reconcile(context.Background(), &fx.shopID, src)
		if err != nil {
			b.Fatal(err)
		}
		if res.Processed != 2000 {
			b.Fatalf("processed %d rows", res.Processed)
		}
	}
}

func BenchmarkReconcileSequential(b *testing.B) { benchmarkReconcile(b, 1) }

func BenchmarkReconcileEightWorkers(b *testing.B) { benchmarkReconcile(b, 8) }
