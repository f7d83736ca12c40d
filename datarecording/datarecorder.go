// Package datarecording stores simulation records in SQLite databases.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns follow the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables created.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// New creates a new DataRecorder that writes to <path>.sqlite3. An empty path
// generates a unique file name.
func New(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

type sqliteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

func (w *sqliteWriter) init() {
	if w.dbName == "" {
		w.dbName = "msisim_data_recording_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.DB = db
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func fieldNames(t reflect.Type) ([]string, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("entry of type %s is not a struct", t)
	}

	names := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			return nil, errors.Errorf("field %s is not exported", field.Name)
		}

		if !isAllowedKind(field.Type.Kind()) {
			return nil, errors.Errorf("field %s of kind %s cannot be stored",
				field.Name, field.Type.Kind())
		}

		names = append(names, field.Name)
	}

	return names, nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	names, err := fieldNames(reflect.TypeOf(sampleEntry))
	if err != nil {
		panic(errors.Wrapf(err, "cannot create table %s", tableName))
	}

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(names, ", \n\t") + "\n" + `);`
	w.mustExecute(createTableSQL)

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	table, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %s does not fit table %s",
			reflect.TypeOf(entry), tableName))
	}

	table.entries = append(table.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	tables := make([]string, 0, len(w.tables))
	for table := range w.tables {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

func (w *sqliteWriter) Flush() {
	if w.entryCount == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for tableName, table := range w.tables {
		if len(table.entries) == 0 {
			continue
		}

		stmt := w.prepareStatement(tableName, table.structType)

		for _, entry := range table.entries {
			value := reflect.ValueOf(entry)
			v := make([]any, 0, value.NumField())

			for i := 0; i < value.NumField(); i++ {
				v = append(v, value.Field(i).Interface())
			}

			_, err := stmt.Exec(v...)
			if err != nil {
				panic(err)
			}
		}

		table.entries = nil

		stmt.Close()
	}

	w.entryCount = 0
}

func (w *sqliteWriter) Close() error {
	w.Flush()

	return w.DB.Close()
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		panic(errors.Wrapf(err, "failed to execute %q", query))
	}

	return res
}

func (w *sqliteWriter) prepareStatement(
	tableName string,
	structType reflect.Type,
) *sql.Stmt {
	placeholders := make([]string, structType.NumField())
	for i := range placeholders {
		placeholders[i] = "?"
	}

	sqlStr := "INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")"

	stmt, err := w.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
