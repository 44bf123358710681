package api

import (
	"errors"
	"net/http"

	"github.com/freshmart/grocery-store/internal/services"
)

// ListProductsHandler handles GET /api/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.products.ListProducts(r.Context())
	if err != nil {
		fail(w, "Failed to fetch products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProducts(products))
}

// GetProductHandler handles GET /api/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID", nil)
		return
	}

	product, err := a.products.GetProduct(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		fail(w, "Failed to fetch product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(*product))
}

// CreateProductHandler handles POST /api/products with a JSON or multipart body
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	in, image, err := decodeProductInput(w, r, true)
	if err != nil {
		fail(w, "Invalid product data", err)
		return
	}
	defer image.Close()

	product, err := a.products.CreateProduct(r.Context(), in, image.Upload())
	if err != nil {
		fail(w, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProduct(*product))
}

// UpdateProductHandler handles PUT/PATCH /api/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID", nil)
		return
	}

	in, image, err := decodeProductInput(w, r, false)
	if err != nil {
		fail(w, "Invalid product data", err)
		return
	}
	defer image.Close()

	product, err := a.products.UpdateProduct(r.Context(), id, in, image.Upload())
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		fail(w, "Failed to update product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(*product))
}

// DeleteProductHandler handles DELETE /api/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID", nil)
		return
	}

	err = a.products.DeleteProduct(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		fail(w, "Failed to delete product", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
