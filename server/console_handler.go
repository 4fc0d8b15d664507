package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"Praetorius/config"
	"Praetorius/core/console"
	"Praetorius/core/scatter"
	"Praetorius/logger"
	"Praetorius/model"
	"Praetorius/repository"

	"github.com/gorilla/mux"
)

// APIHandler holds the dependencies shared by all HTTP handlers.
type APIHandler struct {
	cfg      *config.Config
	catalog  *console.Catalog
	engine   *scatter.Engine
	hub      *ConsoleHub
	userRepo repository.UserRepository
	workRepo repository.WorkRepository
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(
	cfg *config.Config,
	catalog *console.Catalog,
	engine *scatter.Engine,
	hub *ConsoleHub,
	userRepo repository.UserRepository,
	workRepo repository.WorkRepository,
) *APIHandler {
	return &APIHandler{
		cfg:      cfg,
		catalog:  catalog,
		engine:   engine,
		hub:      hub,
		userRepo: userRepo,
		workRepo: workRepo,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response failed", logger.ErrorField(err))
	}
}

// GetWorksHandler 返回目录中的全部作品
func (h *APIHandler) GetWorksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"works":      h.catalog.Works(),
		"generation": h.catalog.Generation(),
	})
}

// GetWorkHandler 返回单个作品详情
func (h *APIHandler) GetWorkHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid work ID", http.StatusBadRequest)
		return
	}
	work := h.catalog.ByID(id)
	if work == nil {
		http.Error(w, "Work not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, work)
}

// LayoutRequest 一次无状态布局计算请求（非WebSocket客户端使用）
type LayoutRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LayoutHandler 为给定视口计算一次确定性布局
// 相同的视口与作品集合总是得到相同的结果
func (h *APIHandler) LayoutHandler(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		http.Error(w, "Width and height must be positive", http.StatusBadRequest)
		return
	}

	session := console.New(h.catalog, console.Options{Engine: h.engine})
	defer session.Teardown()

	box := scatter.Box{Width: req.Width, Height: req.Height}
	positions, _ := session.Layout(box, false)
	writeJSON(w, http.StatusOK, LayoutPayload{
		Positions: positions,
		Items:     session.Items(),
		Computed:  true,
	})
}

// CreateWorkHandler 管理端新增作品
func (h *APIHandler) CreateWorkHandler(w http.ResponseWriter, r *http.Request) {
	var work model.Work
	if err := json.NewDecoder(r.Body).Decode(&work); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if work.Slug == "" {
		http.Error(w, "Slug is required", http.StatusBadRequest)
		return
	}

	if err := h.workRepo.Create(r.Context(), &work); err != nil {
		logger.Error("create work failed", logger.ErrorField(err))
		http.Error(w, "Failed to create work", http.StatusInternalServerError)
		return
	}

	h.reloadCatalogFromDB(r)
	writeJSON(w, http.StatusCreated, work)
}

// UpdateWorkHandler 管理端更新作品
func (h *APIHandler) UpdateWorkHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid work ID", http.StatusBadRequest)
		return
	}

	existing, err := h.workRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("get work failed", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		http.Error(w, "Work not found", http.StatusNotFound)
		return
	}

	var work model.Work
	if err := json.NewDecoder(r.Body).Decode(&work); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	work.ID = id

	if err := h.workRepo.Update(r.Context(), &work); err != nil {
		logger.Error("update work failed", logger.ErrorField(err))
		http.Error(w, "Failed to update work", http.StatusInternalServerError)
		return
	}

	h.reloadCatalogFromDB(r)
	writeJSON(w, http.StatusOK, work)
}

// DeleteWorkHandler 管理端下线作品
func (h *APIHandler) DeleteWorkHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid work ID", http.StatusBadRequest)
		return
	}

	if err := h.workRepo.Delete(r.Context(), id); err != nil {
		logger.Error("delete work failed", logger.ErrorField(err))
		http.Error(w, "Failed to delete work", http.StatusInternalServerError)
		return
	}

	h.reloadCatalogFromDB(r)
	w.WriteHeader(http.StatusNoContent)
}

// reloadCatalogFromDB 编辑操作后用数据库内容刷新共享目录并广播
func (h *APIHandler) reloadCatalogFromDB(r *http.Request) {
	if h.workRepo == nil {
		return
	}
	works, err := h.workRepo.List(r.Context())
	if err != nil {
		logger.Error("reload catalog from DB failed", logger.ErrorField(err))
		return
	}
	h.catalog.Replace(works, h.catalog.PageFollows())
	h.hub.BroadcastWorksUpdate()
}
