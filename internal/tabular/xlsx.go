package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// readXLSX читает первый лист книги. Числа берутся без форматирования ячейки.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumns
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %q: %w", sheets[0], err)
	}

	// GetRows возвращает пустые срезы для пустых строк внутри диапазона
	records := make([][]string, 0, len(rows))
	width := 0
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		records = append(records, row)
		width = max(width, len(row))
	}

	// Ячейки правее заголовка дают столбцы "Unnamed: i"
	if len(records) > 0 && len(records[0]) < width {
		header := make([]string, width)
		copy(header, records[0])
		records[0] = header
	}
	return records, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
