// Example: Using geoquery as an embedded library
//
// This example opens an in-memory DuckDB data source, builds queries with
// the chain API, reads rows sequentially and through parallel partitions,
// and serves the same data source over an in-process HTTP server.
//
// Run this example:
//
//	go run ./example/embedded
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/datasource"
	"github.com/nnnkkk7/geoquery/pkg/dialect"
	"github.com/nnnkkk7/geoquery/pkg/query"
	"github.com/nnnkkk7/geoquery/server/handlers"
)

func main() {
	fmt.Println("=== geoquery Embedded Example ===")
	fmt.Println()

	ctx := context.Background()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	ds, err := datasource.Open(ctx, dialect.DuckDB, "",
		datasource.WithLogger(logger),
		datasource.WithMinChunk(250),
		datasource.WithWorkers(4),
	)
	if err != nil {
		log.Fatalf("Failed to open data source: %v", err)
	}
	defer func() { _ = ds.Close() }()

	err = ds.Exec(ctx,
		"CREATE TABLE parcels (id BIGINT, owner VARCHAR, area BIGINT)",
		"INSERT INTO parcels SELECT i, 'owner' || CAST(i % 5 AS VARCHAR), i * 7 FROM range(1000) t(i)",
	)
	if err != nil {
		log.Fatalf("Failed to seed parcels: %v", err)
	}

	// 1. Build a query
	fmt.Println("1. Largest parcels of one owner:")
	tbl, err := ds.Select("id", "area").From("parcels").
		Where("owner = ?", "owner3").
		OrderBy("area", query.Desc).
		Limit(3).
		AsTable(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	for row, err := range tbl.Stream(ctx, false) {
		if err != nil {
			log.Fatalf("Read failed: %v", err)
		}
		fmt.Printf("   %v\n", row.Map())
	}
	_ = tbl.Close()

	// 2. Read in parallel
	fmt.Println("\n2. Parallel read:")
	tbl, err = ds.Query(ctx, "SELECT id, area FROM parcels ORDER BY id")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	var rows, total int64
	for row, err := range tbl.Stream(ctx, true) {
		if err != nil {
			log.Fatalf("Read failed: %v", err)
		}
		rows++
		total += row.Values[1].(int64)
	}
	fmt.Printf("   %d rows, total area %d\n", rows, total)
	_ = tbl.Close()

	// 3. Serve over HTTP
	server := httptest.NewServer(handlers.NewRouter(handlers.NewTableHandler(ds, 10, logger)))
	defer server.Close()
	fmt.Printf("\n3. Serving at %s\n", server.URL)

	resp, err := http.Get(server.URL + "/api/v1/tables/parcels/count?where=area%20%3E%206000")
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	var count struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &count); err != nil {
		log.Fatalf("Failed to decode response: %v", err)
	}
	fmt.Printf("   parcels with area > 6000: %d\n", count.Count)

	fmt.Println("\n=== Example completed successfully! ===")
}
