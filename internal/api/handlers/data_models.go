// data_models.go - обработчики /api/data-models/ и /api/admin/data-models/.
package handlers

import (
	"net/http"

	"github.com/bigkaa/dataviz/internal/api/middleware"
	"github.com/bigkaa/dataviz/internal/api/routes"
	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/service"
)

// dataModelResponse - JSON-представление модели данных.
type dataModelResponse struct {
	ID           int64   `json:"id"`
	User         int64   `json:"user"`
	Name         string  `json:"name"`
	LinkedTables []int64 `json:"linked_tables"`
}

func mapDataModel(dm *model.DataModel) dataModelResponse {
	linked := dm.LinkedTables
	if linked == nil {
		linked = []int64{}
	}
	return dataModelResponse{ID: dm.ID, User: dm.OwnerID, Name: dm.Name, LinkedTables: linked}
}

// dataModelPatchRequest - тело PATCH. Поле user игнорируется.
type dataModelPatchRequest struct {
	Name         *string  `json:"name"`
	LinkedTables *[]int64 `json:"linked_tables"`
}

// ListDataModels - GET /api/data-models/.
func (h *APIHandler) ListDataModels(w http.ResponseWriter, r *http.Request, params routes.ListParams) {
	page, err := h.dataModels.List(r.Context(), middleware.UserFromContext(r.Context()), pageNumber(params.Page))
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения списка моделей данных")
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(r, page, mapDataModel))
}

// CreateDataModel - POST /api/data-models/. Владелец - вызывающий.
func (h *APIHandler) CreateDataModel(w http.ResponseWriter, r *http.Request) {
	var in service.DataModelInput
	if !decodeJSON(w, r, &in, false) {
		return
	}

	dm, err := h.dataModels.Create(r.Context(), middleware.UserFromContext(r.Context()), in)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка создания модели данных")
		return
	}
	writeJSON(w, http.StatusCreated, mapDataModel(dm))
}

// GetDataModel - GET /api/data-models/{id}/.
func (h *APIHandler) GetDataModel(w http.ResponseWriter, r *http.Request, id int64) {
	dm, err := h.dataModels.Get(r.Context(), middleware.UserFromContext(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения модели данных")
		return
	}
	writeJSON(w, http.StatusOK, mapDataModel(dm))
}

// ReplaceDataModel - PUT /api/data-models/{id}/.
func (h *APIHandler) ReplaceDataModel(w http.ResponseWriter, r *http.Request, id int64) {
	var in service.DataModelInput
	if !decodeJSON(w, r, &in, false) {
		return
	}

	dm, err := h.dataModels.Replace(r.Context(), middleware.UserFromContext(r.Context()), id, in)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка обновления модели данных")
		return
	}
	writeJSON(w, http.StatusOK, mapDataModel(dm))
}

// PatchDataModel - PATCH /api/data-models/{id}/.
func (h *APIHandler) PatchDataModel(w http.ResponseWriter, r *http.Request, id int64) {
	var req dataModelPatchRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	patch := service.DataModelPatch{Name: req.Name, LinkedTables: req.LinkedTables}
	dm, err := h.dataModels.Patch(r.Context(), middleware.UserFromContext(r.Context()), id, patch)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка обновления модели данных")
		return
	}
	writeJSON(w, http.StatusOK, mapDataModel(dm))
}

// DeleteDataModel - DELETE /api/data-models/{id}/. Связанные файлы не удаляются.
func (h *APIHandler) DeleteDataModel(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.dataModels.Delete(r.Context(), middleware.UserFromContext(r.Context()), id); err != nil {
		h.handleServiceError(w, r, err, "Ошибка удаления модели данных")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAdminDataModels - GET /api/admin/data-models/. Все модели без ограничения по владельцу.
func (h *APIHandler) ListAdminDataModels(w http.ResponseWriter, r *http.Request, params routes.ListParams) {
	page, err := h.dataModels.ListAll(r.Context(), pageNumber(params.Page))
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения списка моделей данных")
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(r, page, mapDataModel))
}

// CreateAdminDataModel - POST /api/admin/data-models/.
func (h *APIHandler) CreateAdminDataModel(w http.ResponseWriter, r *http.Request) {
	h.CreateDataModel(w, r)
}
