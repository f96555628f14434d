// Command csvnorm normalizes delimited text files: names, emails, phones
// and dates are rewritten into one canonical form and the result is written
// to a file, stdout, S3, an XLSX workbook, a SQL table or a message broker.
package main

import (
	"fmt"
	"os"

	_ "github.com/ruslano69/csvnorm/pkg/adapters/mssql"    // Register mssql
	_ "github.com/ruslano69/csvnorm/pkg/adapters/mysql"    // Register mysql
	_ "github.com/ruslano69/csvnorm/pkg/adapters/postgres" // Register postgres
	_ "github.com/ruslano69/csvnorm/pkg/adapters/sqlite"   // Register sqlite
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
