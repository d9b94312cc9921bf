package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/core/service"
)

type ProductHandler struct {
	productService *service.ProductService
}

type ProductHTTPRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type ProductHTTPResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProductRequest(w, r)
	if !ok {
		return
	}

	p, err := h.productService.CreateProduct(r.Context(), domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create product")
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(*p))
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.productService.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load product")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.SearchProducts(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not search products")
		return
	}

	responses := make([]ProductHTTPResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProductRequest(w, r)
	if !ok {
		return
	}

	p, err := h.productService.UpdateProduct(r.Context(), domain.Product{
		ID:          r.PathValue("id"),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not update product")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.productService.DeleteProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeProductRequest(w http.ResponseWriter, r *http.Request) (ProductHTTPRequest, bool) {
	var req ProductHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Name == "" || req.Price < 0 || req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "name is mandatory, price and quantity must be non-negative")
		return req, false
	}
	return req, true
}

func toProductResponse(p domain.Product) ProductHTTPResponse {
	return ProductHTTPResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
	}
}
