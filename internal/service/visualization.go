package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/dataviz/internal/tabular"
)

// Visualization - строки файла, подготовленные для клиента.
type Visualization struct {
	FileName string
	Data     []tabular.Record
}

// VisualizationService загружает табличный файл и фильтрует строки.
type VisualizationService struct {
	files  *FileService
	logger *slog.Logger
}

// NewVisualizationService создаёт сервис визуализации.
func NewVisualizationService(files *FileService, logger *slog.Logger) *VisualizationService {
	return &VisualizationService{
		files:  files,
		logger: logger.With(slog.String("component", "visualization_service")),
	}
}

// Visualize читает файл fileID и оставляет строки, у которых первая колонка равна filter.
// Пустой filter - без фильтрации.
func (s *VisualizationService) Visualize(ctx context.Context, fileID int64, filter string) (*Visualization, error) {
	rec, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	format, err := tabular.FormatOf(rec.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, rec.StoragePath)
	}

	f, err := s.files.openStored(rec)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := tabular.Read(f, format)
	if err != nil {
		s.logger.Error("Ошибка чтения табличного файла",
			slog.Int64("file_id", fileID),
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("чтение файла %d: %w", fileID, err)
	}

	records := table.FilterFirstColumn(filter).Records()
	visualizationRowsReturned.Observe(float64(len(records)))

	s.logger.Debug("Визуализация подготовлена",
		slog.Int64("file_id", fileID),
		slog.String("format", string(format)),
		slog.Int("rows", len(records)),
		slog.Bool("filtered", filter != ""),
	)
	return &Visualization{FileName: rec.Name, Data: records}, nil
}
