package handlers

import (
	"net/http"

	"github.com/bigkaa/dataviz/internal/api/routes"
	"github.com/bigkaa/dataviz/internal/tabular"
)

type visualizationResponse struct {
	FileName string           `json:"file_name"`
	Data     []tabular.Record `json:"data"`
}

// Visualize - GET /api/visualize/{file_id}/?filter=.
func (h *APIHandler) Visualize(w http.ResponseWriter, r *http.Request, fileID int64, params routes.VisualizeParams) {
	filter := ""
	if params.Filter != nil {
		filter = *params.Filter
	}

	v, err := h.visualization.Visualize(r.Context(), fileID, filter)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка чтения табличного файла")
		return
	}

	data := v.Data
	if data == nil {
		data = []tabular.Record{}
	}
	writeJSON(w, http.StatusOK, visualizationResponse{FileName: v.FileName, Data: data})
}
