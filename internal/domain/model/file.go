// Пакет model - доменные модели сервиса dataviz.
package model

import "time"

// FileRecord - загруженный табличный файл.
// Хранится в таблице file_records, байты - в filestore.
type FileRecord struct {
	// ID - идентификатор записи (BIGSERIAL)
	ID int64
	// Name - отображаемое имя
	Name string
	// StoragePath - относительный путь в filestore (uploads/<имя>.csv|.xlsx)
	StoragePath string
	// UploadedAt - время загрузки, задаётся один раз при создании
	UploadedAt time.Time
}

// DataModel - именованная группа файлов, принадлежащая пользователю.
type DataModel struct {
	ID int64
	// OwnerID - владелец, не меняется после создания
	OwnerID int64
	Name    string
	// LinkedTables - идентификаторы связанных FileRecord (без дубликатов, по возрастанию)
	LinkedTables []int64
}
