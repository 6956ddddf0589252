// Package schema declares the relational tables of the sales warehouse in a
// dialect-neutral form. Column types are logical ("text", "bigint",
// "double", "date"); internal/schema/ddl maps them per backend.
package schema

import (
	"salesetl/internal/config"
	"salesetl/internal/sales"
)

// Logical column types.
const (
	Text   = "text"
	BigInt = "bigint"
	Double = "double"
	Date   = "date"
)

// Column is one column of a Table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Table is a table with its qualifying schema (empty for the backend
// default) and ordered columns.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// FQN returns schema.name, or name when the schema is empty.
func (t Table) FQN() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Sales declares the consolidated sales table. Column order matches
// sales.SaleColumns.
func Sales(schemaName, name string) Table {
	return Table{Schema: schemaName, Name: name, Columns: []Column{
		{Name: sales.ColSaleKey, Type: Text},
		{Name: sales.ColSaleDate, Type: Date},
		{Name: sales.ColStoreID, Type: Text},
		{Name: sales.ColCustomerID, Type: BigInt},
		{Name: sales.ColCustomerType, Type: Text},
		{Name: sales.ColCustomerSex, Type: Text, Nullable: true},
		{Name: sales.ColProductID, Type: Text},
		{Name: sales.ColGross, Type: Double, Nullable: true},
		{Name: sales.ColDiscount, Type: Double, Nullable: true},
		{Name: sales.ColNet, Type: Double, Nullable: true},
		{Name: sales.ColWeightKg, Type: Double, Nullable: true},
	}}
}

// Products declares the product catalog. Product ids are text, as in the
// sales table, so the export join compares like with like.
func Products(schemaName, name string) Table {
	cols := []Column{{Name: sales.ProductColumns[0], Type: Text}}
	for _, n := range sales.ProductColumns[1:5] {
		cols = append(cols, Column{Name: n, Type: Text, Nullable: true})
	}
	cols = append(cols, Column{Name: sales.ProductColumns[5], Type: BigInt, Nullable: true})
	return Table{Schema: schemaName, Name: name, Columns: cols}
}

// Customers declares the customer table.
func Customers(schemaName, name string) Table {
	return Table{Schema: schemaName, Name: name, Columns: []Column{
		{Name: sales.CustomerColumns[0], Type: BigInt},
		{Name: sales.CustomerColumns[1], Type: Text, Nullable: true},
		{Name: sales.CustomerColumns[2], Type: Text, Nullable: true},
		{Name: sales.CustomerColumns[3], Type: Text, Nullable: true},
		{Name: sales.CustomerColumns[4], Type: Date, Nullable: true},
	}}
}

// FromConfig returns the three tables named by db, in creation order.
func FromConfig(db config.DBConfig) []Table {
	return []Table{
		Products(db.Schema, db.ProductsTable),
		Sales(db.Schema, db.SalesTable),
		Customers(db.Schema, db.CustomersTable),
	}
}
