// Пакет tabular - загрузка CSV/XLSX в таблицу с типизацией столбцов,
// фильтр по первому столбцу и выдача строк в исходном порядке.
package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
)

// Ошибки пакета.
var (
	// ErrUnsupportedFormat - расширение не .csv и не .xlsx.
	ErrUnsupportedFormat = errors.New("неподдерживаемый формат файла")
	// ErrNoColumns - в файле нет строки заголовка.
	ErrNoColumns = errors.New("в файле нет столбцов")
)

// Format - формат табличного файла.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf определяет формат по расширению пути хранения (с учётом регистра).
func FormatOf(storagePath string) (Format, error) {
	switch path.Ext(storagePath) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path.Ext(storagePath))
	}
}

// Kind - выведенный тип столбца.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Table - таблица с сырыми значениями ячеек.
// Каждая строка имеет ровно len(Columns) ячеек.
type Table struct {
	Columns []string
	Kinds   []Kind
	Rows    [][]string
}

// Read загружает таблицу из r в указанном формате.
func Read(r io.Reader, format Format) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return newTable(records)
}

// newTable строит таблицу: первая запись - заголовок, остальные - данные.
func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrNoColumns
	}

	columns := headerNames(records[0])
	rows := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("строка %d: %d значений при %d столбцах", i+2, len(rec), len(columns))
		}
		row := make([]string, len(columns))
		copy(row, rec)
		rows = append(rows, row)
	}

	t := &Table{Columns: columns, Rows: rows}
	t.Kinds = make([]Kind, len(columns))
	for c := range columns {
		t.Kinds[c] = inferKind(rows, c)
	}
	return t, nil
}

// headerNames заменяет пустые имена на "Unnamed: i" и нумерует дубликаты: a, a.1, a.2.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// FilterFirstColumn оставляет строки, у которых сырое значение первого
// столбца в точности равно value. Пустой value возвращает таблицу без изменений.
func (t *Table) FilterFirstColumn(value string) *Table {
	if value == "" || len(t.Columns) == 0 {
		return t
	}
	filtered := make([][]string, 0)
	for _, row := range t.Rows {
		if row[0] == value {
			filtered = append(filtered, row)
		}
	}
	return &Table{Columns: t.Columns, Kinds: t.Kinds, Rows: filtered}
}

// Records возвращает строки как упорядоченные отображения столбец -> значение.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		values := make([]any, len(row))
		for c, cell := range row {
			values[c] = convert(cell, t.Kinds[c])
		}
		out[i] = Record{keys: t.Columns, values: values}
	}
	return out
}

// Record - строка таблицы, сериализуется в JSON с сохранением порядка столбцов.
type Record struct {
	keys   []string
	values []any
}

// Get возвращает значение столбца по имени.
func (r Record) Get(column string) (any, bool) {
	for i, k := range r.keys {
		if k == column {
			return r.values[i], true
		}
	}
	return nil, false
}

// Keys возвращает имена столбцов в исходном порядке.
func (r Record) Keys() []string {
	return r.keys
}

// MarshalJSON сериализует запись как JSON-объект в порядке столбцов.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("столбец %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// inferKind выбирает самый узкий тип, которому соответствуют все непустые ячейки столбца.
// Столбец без значений считается строковым.
func inferKind(rows [][]string, col int) Kind {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, row := range rows {
		cell := row[col]
		if cell == "" {
			continue
		}
		seen = true
		if isInt {
			if _, ok := parseInt(cell); !ok {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFloat(cell); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(cell); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return KindString
		}
	}
	switch {
	case !seen:
		return KindString
	case isInt:
		return KindInt
	case isFloat:
		return KindFloat
	case isBool:
		return KindBool
	default:
		return KindString
	}
}

// convert приводит сырое значение к типу столбца; пустая ячейка - nil.
func convert(cell string, kind Kind) any {
	if cell == "" {
		return nil
	}
	switch kind {
	case KindInt:
		v, _ := parseInt(cell)
		return v
	case KindFloat:
		v, _ := parseFloat(cell)
		return v
	case KindBool:
		v, _ := parseBool(cell)
		return v
	default:
		return cell
	}
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

// parseFloat принимает только десятичную запись; NaN и бесконечности не в JSON.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	switch strings.TrimSpace(s) {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}
