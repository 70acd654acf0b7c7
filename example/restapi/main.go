// Example: Using the geoquery HTTP API
//
// This example lists tables and reads rows through the HTTP API. It works
// with any language that can send HTTP requests.
//
// Start the server:
//
//	go run ./cmd/geoquery serve --driver duckdb --dsn ./parcels.duckdb
//
// Then run this example:
//
//	go run ./example/restapi parcels
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/nnnkkk7/geoquery/server/apierror"
	"github.com/nnnkkk7/geoquery/server/types"
)

var baseURL = getBaseURL()

func getBaseURL() string {
	host := os.Getenv("GEOQUERY_HOST")
	if host == "" {
		host = "localhost:8080"
	}
	return fmt.Sprintf("http://%s/api/v1", host)
}

func main() {
	fmt.Println("=== geoquery HTTP API Example ===")
	fmt.Println()

	var tables types.ListTablesResponse
	if err := get("/tables", nil, &tables); err != nil {
		log.Fatalf("Failed to list tables: %v", err)
	}
	fmt.Println("Tables:")
	for _, t := range tables.Tables {
		fmt.Printf("  - %s.%s (%s)\n", t.Schema, t.Name, t.TableType)
	}

	if len(os.Args) < 2 {
		return
	}
	name := os.Args[1]

	var rows types.RowsResponse
	params := url.Values{"limit": {"5"}, "parallel": {"true"}}
	if err := get("/tables/"+url.PathEscape(name)+"/rows", params, &rows); err != nil {
		log.Fatalf("Failed to read rows: %v", err)
	}
	fmt.Printf("\n%s (%d rows)\n", rows.Query, rows.Returned)
	for _, row := range rows.RowSet {
		fmt.Printf("  %v\n", row)
	}
}

func get(path string, params url.Values, out any) error {
	u := baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr apierror.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: [%s] %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
