// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories with the storage package. It makes the following kinds
// available at runtime:
//
//   - "postgres" (salesetl/internal/storage/postgres)
//   - "sqlite"   (salesetl/internal/storage/sqlite)
//   - "mssql"    (salesetl/internal/storage/mssql)
//   - "mysql"    (salesetl/internal/storage/mysql)
//
// A binary that needs only a subset can import those backends directly.
package all

import (
	_ "salesetl/internal/storage/mssql"
	_ "salesetl/internal/storage/mysql"
	_ "salesetl/internal/storage/postgres"
	_ "salesetl/internal/storage/sqlite"
)
