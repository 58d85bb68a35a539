package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"r2s/rpc"
)

const exportUsage = `Usage: r2s-cli export events --out <file.parquet> [--csv <file.csv>] [--from <seq>] [--type <event type>]

Pages through ledger_events and writes the journal for offline reconciliation.`

const exportPageSize = 500

type eventRow struct {
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	TxHash     string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func runExportCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "events" {
		fmt.Fprintln(stderr, exportUsage)
		return 1
	}
	fs := newFlagSet("export events", stderr, exportUsage)
	out := fs.String("out", "", "parquet output path")
	csvOut := fs.String("csv", "", "optional CSV output path")
	fromStr := fs.String("from", "1", "first event sequence")
	eventType := fs.String("type", "", "only export events of this type")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	if rejectPositional(fs, stderr) {
		return 1
	}
	if strings.TrimSpace(*out) == "" {
		return printError(stderr, "--out is required")
	}
	from, err := strconv.ParseUint(strings.TrimSpace(*fromStr), 10, 64)
	if err != nil {
		return printError(stderr, "--from must be a non-negative integer")
	}

	rows, err := collectEvents(from, strings.TrimSpace(*eventType))
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := writeEventsParquet(*out, rows); err != nil {
		return printError(stderr, err.Error())
	}
	if path := strings.TrimSpace(*csvOut); path != "" {
		if err := writeEventsCSV(path, rows); err != nil {
			return printError(stderr, err.Error())
		}
	}
	fmt.Fprintf(stdout, "Exported %d events to %s\n", len(rows), *out)
	return 0
}

func collectEvents(from uint64, eventType string) ([]eventRow, error) {
	var rows []eventRow
	for {
		params := map[string]interface{}{"from": from, "limit": exportPageSize}
		if eventType != "" {
			params["type"] = eventType
		}
		raw, err := rpcCall("ledger_events", params, false)
		if err != nil {
			return nil, err
		}
		var page rpc.EventsResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode events page: %w", err)
		}
		for _, evt := range page.Events {
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return nil, err
			}
			rows = append(rows, eventRow{
				Sequence:   int64(evt.Sequence),
				TxHash:     evt.TxHash,
				Type:       evt.Type,
				Attributes: string(attrs),
			})
		}
		if len(page.Events) == 0 || page.Next > page.Head || page.Next <= from {
			return rows, nil
		}
		from = page.Next
	}
}

func writeEventsParquet(path string, rows []eventRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(eventRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range rows {
		if err := pw.Write(&rows[i]); err != nil {
			file.Close()
			return fmt.Errorf("export: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: finalize parquet: %w", err)
	}
	return file.Close()
}

func writeEventsCSV(path string, rows []eventRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write([]string{"sequence", "tx_hash", "type", "attributes"}); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{strconv.FormatInt(row.Sequence, 10), row.TxHash, row.Type, row.Attributes}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
