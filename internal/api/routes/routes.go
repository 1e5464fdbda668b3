// Пакет routes - таблица маршрутов API и привязка параметров.
// Структура повторяет chi-server из oapi-codegen: ServerInterface,
// обёртка с привязкой path/query параметров через oapi-codegen/runtime
// и регистрация маршрутов в chi.Router. Каждому защищённому маршруту
// сопоставлена политика доступа по группам.
package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/dataviz/internal/api/errors"
	"github.com/bigkaa/dataviz/internal/api/middleware"
	"github.com/bigkaa/dataviz/internal/domain/rbac"
)

// ListParams - параметры списочных запросов.
type ListParams struct {
	// Page - номер страницы, по умолчанию 1
	Page *int `form:"page,omitempty" json:"page,omitempty"`
}

// VisualizeParams - параметры визуализации.
type VisualizeParams struct {
	// Filter - значение первой колонки для отбора строк
	Filter *string `form:"filter,omitempty" json:"filter,omitempty"`
}

// ServerInterface - обработчики всех маршрутов API.
type ServerInterface interface {
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /.well-known/jwks.json)
	GetJWKS(w http.ResponseWriter, r *http.Request)
	// (GET /api/schema/)
	GetSchema(w http.ResponseWriter, r *http.Request)

	// (GET /api/files/)
	ListFiles(w http.ResponseWriter, r *http.Request, params ListParams)
	// (POST /api/files/)
	CreateFile(w http.ResponseWriter, r *http.Request)
	// (GET /api/files/{id}/)
	GetFile(w http.ResponseWriter, r *http.Request, id int64)
	// (PUT /api/files/{id}/)
	ReplaceFile(w http.ResponseWriter, r *http.Request, id int64)
	// (PATCH /api/files/{id}/)
	PatchFile(w http.ResponseWriter, r *http.Request, id int64)
	// (DELETE /api/files/{id}/)
	DeleteFile(w http.ResponseWriter, r *http.Request, id int64)
	// (GET /api/files/{id}/download/)
	DownloadFile(w http.ResponseWriter, r *http.Request, id int64)

	// (GET /api/data-models/)
	ListDataModels(w http.ResponseWriter, r *http.Request, params ListParams)
	// (POST /api/data-models/)
	CreateDataModel(w http.ResponseWriter, r *http.Request)
	// (GET /api/data-models/{id}/)
	GetDataModel(w http.ResponseWriter, r *http.Request, id int64)
	// (PUT /api/data-models/{id}/)
	ReplaceDataModel(w http.ResponseWriter, r *http.Request, id int64)
	// (PATCH /api/data-models/{id}/)
	PatchDataModel(w http.ResponseWriter, r *http.Request, id int64)
	// (DELETE /api/data-models/{id}/)
	DeleteDataModel(w http.ResponseWriter, r *http.Request, id int64)

	// (GET /api/admin/data-models/)
	ListAdminDataModels(w http.ResponseWriter, r *http.Request, params ListParams)
	// (POST /api/admin/data-models/)
	CreateAdminDataModel(w http.ResponseWriter, r *http.Request)

	// (GET /api/visualize/{file_id}/)
	Visualize(w http.ResponseWriter, r *http.Request, fileID int64, params VisualizeParams)

	// (POST /api/register/)
	Register(w http.ResponseWriter, r *http.Request)
	// (GET /api/profile/)
	GetProfile(w http.ResponseWriter, r *http.Request)
	// (PUT|PATCH /api/profile/)
	UpdateProfile(w http.ResponseWriter, r *http.Request)

	// (POST /api/token/)
	ObtainToken(w http.ResponseWriter, r *http.Request)
	// (POST /api/token/refresh/)
	RefreshToken(w http.ResponseWriter, r *http.Request)

	// (POST /api/chatbot/query/)
	ChatbotQuery(w http.ResponseWriter, r *http.Request)
}

// Политики маршрутов: Default - как в исходном API, Strict - минимальные права.
var (
	readRule  = rbac.Rule{Default: rbac.Authenticated, Strict: rbac.AnyGroup}
	writeRule = rbac.Rule{Default: rbac.Authenticated, Strict: rbac.AdminOrAnalyst}
	userRule  = rbac.Uniform(rbac.Authenticated)
	adminRule = rbac.Uniform(rbac.Admin)
)

// Options - параметры регистрации маршрутов.
type Options struct {
	// BaseRouter - роутер для регистрации, nil - новый chi.Router
	BaseRouter chi.Router
	// Auth - middleware аутентификации для защищённых маршрутов
	Auth func(http.Handler) http.Handler
	// StrictPolicy - использовать Strict-вариант политик
	StrictPolicy bool
	// ErrorHandlerFunc - ответ на ошибку привязки параметров
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError - параметр не удалось привязать.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Некорректный формат параметра %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// defaultErrorHandler - ответ на ошибку привязки параметров.
// Нечисловой id и номер страницы отвечают 404, остальное - 400.
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	var pe *InvalidParamFormatError
	if errors.As(err, &pe) && pe.ParamName != "filter" {
		apierrors.NotFound(w, "Ресурс не найден")
		return
	}
	apierrors.ValidationError(w, err.Error())
}

// ServerInterfaceWrapper привязывает параметры и вызывает обработчики.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// bindID привязывает целочисленный path-параметр.
func (siw *ServerInterfaceWrapper) bindID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return 0, false
	}
	return id, true
}

// bindList привязывает query-параметр page.
func (siw *ServerInterfaceWrapper) bindList(w http.ResponseWriter, r *http.Request) (ListParams, bool) {
	var params ListParams
	err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &params.Page)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "page", Err: err})
		return params, false
	}
	return params, true
}

func (siw *ServerInterfaceWrapper) withID(fn func(w http.ResponseWriter, r *http.Request, id int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.bindID(w, r, "id")
		if !ok {
			return
		}
		fn(w, r, id)
	}
}

func (siw *ServerInterfaceWrapper) withList(fn func(w http.ResponseWriter, r *http.Request, params ListParams)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := siw.bindList(w, r)
		if !ok {
			return
		}
		fn(w, r, params)
	}
}

// Visualize привязывает file_id и filter.
func (siw *ServerInterfaceWrapper) Visualize(w http.ResponseWriter, r *http.Request) {
	fileID, ok := siw.bindID(w, r, "file_id")
	if !ok {
		return
	}

	var params VisualizeParams
	if err := runtime.BindQueryParameter("form", true, false, "filter", r.URL.Query(), &params.Filter); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "filter", Err: err})
		return
	}

	siw.Handler.Visualize(w, r, fileID, params)
}

// Handler создаёт http.Handler со всеми маршрутами.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, Options{})
}

// HandlerFromMux регистрирует маршруты в существующем роутере.
func HandlerFromMux(si ServerInterface, r chi.Router, auth func(http.Handler) http.Handler, strict bool) http.Handler {
	return HandlerWithOptions(si, Options{BaseRouter: r, Auth: auth, StrictPolicy: strict})
}

// HandlerWithOptions регистрирует маршруты с заданными параметрами.
func HandlerWithOptions(si ServerInterface, options Options) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = defaultErrorHandler
	}

	siw := &ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	// protect оборачивает обработчик аутентификацией и проверкой политики
	protect := func(rule rbac.Rule, h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		handler = middleware.RequirePolicy(rule.Select(options.StrictPolicy))(handler)
		if options.Auth != nil {
			handler = options.Auth(handler)
		}
		return handler
	}

	// Публичные
	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)
	r.Get("/.well-known/jwks.json", si.GetJWKS)
	r.Get("/api/schema/", si.GetSchema)
	r.Post("/api/register/", si.Register)
	r.Post("/api/token/", si.ObtainToken)
	r.Post("/api/token/refresh/", si.RefreshToken)

	// Файлы
	r.Method(http.MethodGet, "/api/files/", protect(readRule, siw.withList(si.ListFiles)))
	r.Method(http.MethodPost, "/api/files/", protect(writeRule, si.CreateFile))
	r.Method(http.MethodGet, "/api/files/{id}/", protect(readRule, siw.withID(si.GetFile)))
	r.Method(http.MethodPut, "/api/files/{id}/", protect(writeRule, siw.withID(si.ReplaceFile)))
	r.Method(http.MethodPatch, "/api/files/{id}/", protect(writeRule, siw.withID(si.PatchFile)))
	r.Method(http.MethodDelete, "/api/files/{id}/", protect(writeRule, siw.withID(si.DeleteFile)))
	r.Method(http.MethodGet, "/api/files/{id}/download/", protect(readRule, siw.withID(si.DownloadFile)))

	// Модели данных
	r.Method(http.MethodGet, "/api/data-models/", protect(readRule, siw.withList(si.ListDataModels)))
	r.Method(http.MethodPost, "/api/data-models/", protect(writeRule, si.CreateDataModel))
	r.Method(http.MethodGet, "/api/data-models/{id}/", protect(readRule, siw.withID(si.GetDataModel)))
	r.Method(http.MethodPut, "/api/data-models/{id}/", protect(writeRule, siw.withID(si.ReplaceDataModel)))
	r.Method(http.MethodPatch, "/api/data-models/{id}/", protect(writeRule, siw.withID(si.PatchDataModel)))
	r.Method(http.MethodDelete, "/api/data-models/{id}/", protect(writeRule, siw.withID(si.DeleteDataModel)))

	r.Method(http.MethodGet, "/api/admin/data-models/", protect(adminRule, siw.withList(si.ListAdminDataModels)))
	r.Method(http.MethodPost, "/api/admin/data-models/", protect(adminRule, si.CreateAdminDataModel))

	r.Method(http.MethodGet, "/api/visualize/{file_id}/", protect(readRule, siw.Visualize))

	r.Method(http.MethodGet, "/api/profile/", protect(userRule, si.GetProfile))
	r.Method(http.MethodPut, "/api/profile/", protect(userRule, si.UpdateProfile))
	r.Method(http.MethodPatch, "/api/profile/", protect(userRule, si.UpdateProfile))

	r.Method(http.MethodPost, "/api/chatbot/query/", protect(userRule, si.ChatbotQuery))

	return r
}
