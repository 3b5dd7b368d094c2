package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/ida/pkg/database"
)

type colType int

const (
	colID colType = iota
	colText
	colLongText
	colSortKey
	colInt
	colDecimal
	colTime
)

// dialect holds the SQL that differs between the supported targets.
type dialect struct {
	driver string
}

func dialectFor(driver string) dialect {
	return dialect{driver: driver}
}

func (d dialect) mssql() bool { return d.driver == database.DriverSQLServer }

func (d dialect) columnType(t colType) string {
	switch d.driver {
	case database.DriverSQLServer:
		switch t {
		case colID:
			return "NVARCHAR(36)"
		case colText:
			return "NVARCHAR(400)"
		case colLongText:
			return "NVARCHAR(MAX)"
		case colSortKey:
			return "VARCHAR(255) COLLATE Latin1_General_BIN2"
		case colInt:
			return "INT"
		case colDecimal:
			return "DECIMAL(18,4)"
		case colTime:
			return "DATETIME2"
		}
	case database.DriverPostgres:
		switch t {
		case colID:
			return "VARCHAR(36)"
		case colText:
			return "VARCHAR(400)"
		case colLongText:
			return "TEXT"
		case colSortKey:
			return `VARCHAR(255) COLLATE "C"`
		case colInt:
			return "INTEGER"
		case colDecimal:
			return "NUMERIC(18,4)"
		case colTime:
			return "TIMESTAMPTZ"
		}
	default:
		switch t {
		case colID, colText, colLongText:
			return "TEXT"
		case colSortKey:
			return "TEXT COLLATE BINARY"
		case colInt:
			return "INTEGER"
		case colDecimal:
			return "DECIMAL(18,4)"
		case colTime:
			// the sqlite driver parses TIMESTAMP columns back into time.Time
			return "TIMESTAMP"
		}
	}
	return "TEXT"
}

// createTable renders the idempotent DDL for t.
func (d dialect) createTable(t tableDef) []string {
	defs := make([]string, 0, len(t.columns)+4)
	for _, c := range t.columns {
		def := c.name + " " + d.columnType(c.typ)
		if c.name == "id" {
			def += " NOT NULL PRIMARY KEY"
		} else if !c.nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	for _, c := range t.columns {
		if c.ref != "" {
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(id)", c.name, c.ref.Table()))
		}
	}

	body := strings.Join(defs, ",\n\t")
	table := t.kind.Table()
	var stmts []string
	if d.mssql() {
		stmts = append(stmts, fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n\t%s\n)", table, table, body))
	} else {
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, body))
	}
	for _, idx := range t.indexes {
		name := fmt.Sprintf("ix_%s_%s", table, strings.Join(idx, "_"))
		cols := strings.Join(idx, ", ")
		if d.mssql() {
			stmts = append(stmts, fmt.Sprintf(
				"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s') CREATE INDEX %s ON %s (%s)",
				name, name, table, cols))
		} else {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, cols))
		}
	}
	return stmts
}

// SQL Server has no RELEASE; a savepoint there simply stays until commit.
func (d dialect) savepoint(name string) string {
	if d.mssql() {
		return "SAVE TRANSACTION " + name
	}
	return "SAVEPOINT " + name
}

func (d dialect) rollbackTo(name string) string {
	if d.mssql() {
		return "ROLLBACK TRANSACTION " + name
	}
	return "ROLLBACK TO SAVEPOINT " + name
}

func (d dialect) release(name string) string {
	if d.mssql() {
		return ""
	}
	return "RELEASE SAVEPOINT " + name
}
