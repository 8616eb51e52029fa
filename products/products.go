package products

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/media"
	"craftriver/models"
	"craftriver/mq"
	"craftriver/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxFormMemory = 64 << 20

// Handler serves the marketplace product endpoints. Product images go through
// the same blob pipeline as post media.
type Handler struct {
	Ingest *media.Ingestor
	Clean  *media.Cleaner
}

// CreateProduct handles POST /api/products: multipart name, description,
// price, stock, category, subCategory, colors and images[]. The caller is
// the seller.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sellerID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || sellerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Product name is required")
		return
	}
	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil || price < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid price")
		return
	}
	stock, err := strconv.Atoi(r.FormValue("stock"))
	if err != nil || stock < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid stock")
		return
	}

	var images []*multipart.FileHeader
	if r.MultipartForm != nil {
		images = r.MultipartForm.File["images"]
	}

	ctx := r.Context()
	product := models.Product{
		ProductID:   uuid.New().String(),
		SellerID:    sellerID,
		Name:        name,
		Description: strings.TrimSpace(r.FormValue("description")),
		Price:       price,
		Stock:       stock,
		Category:    strings.TrimSpace(r.FormValue("category")),
		SubCategory: strings.TrimSpace(r.FormValue("subCategory")),
		Colors:      utils.SplitTags(r.FormValue("colors")),
		CreatedAt:   time.Now(),
	}

	if len(images) > 0 {
		imageIDs, err := h.Ingest.IngestBatch(ctx, images, media.KindImage, media.PostPolicy)
		if err != nil {
			respondIngestError(w, err)
			return
		}
		product.MediaIDs = imageIDs
		product.ImageURLs = media.Refs(imageIDs)
	}

	if _, err := db.ProductsCollection.InsertOne(ctx, product); err != nil {
		h.Clean.OnOwnerDeleted(ctx, product.MediaIDs)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving product")
		return
	}

	go mq.Emit(globals.Ctx, "product-created", mq.Index{EntityType: "product", EntityId: product.ProductID, Method: "POST"})
	utils.RespondWithJSON(w, http.StatusCreated, product)
}

// GetAllProducts handles GET /api/products with optional category and seller
// filters.
func (h *Handler) GetAllProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		filter["category"] = c
	}
	if s := strings.TrimSpace(r.URL.Query().Get("sellerId")); s != "" {
		filter["sellerId"] = s
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := db.ProductsCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	defer cur.Close(ctx)

	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode products")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct handles GET /api/products/:productid.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var product models.Product
	err := db.ProductsCollection.FindOne(r.Context(), bson.M{"productid": ps.ByName("productid")}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, product)
}

// UpdateProduct handles PUT /api/products/:productid. Replacement images
// commit to the record before the stale blobs are deleted.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sellerID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || sellerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	ctx := r.Context()
	productID := ps.ByName("productid")

	var product models.Product
	if err := db.ProductsCollection.FindOne(ctx, bson.M{"productid": productID}).Decode(&product); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if product.SellerID != sellerID {
		utils.RespondWithError(w, http.StatusForbidden, "You can only update your own products")
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if v := strings.TrimSpace(r.FormValue("name")); v != "" {
		update["name"] = v
	}
	if v := r.FormValue("description"); v != "" {
		update["description"] = strings.TrimSpace(v)
	}
	if v := r.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil || price < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid price")
			return
		}
		update["price"] = price
	}
	if v := r.FormValue("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil || stock < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid stock")
			return
		}
		update["stock"] = stock
	}
	if v := strings.TrimSpace(r.FormValue("category")); v != "" {
		update["category"] = v
	}
	if v := strings.TrimSpace(r.FormValue("subCategory")); v != "" {
		update["subCategory"] = v
	}
	if v := r.FormValue("colors"); v != "" {
		update["colors"] = utils.SplitTags(v)
	}

	var images []*multipart.FileHeader
	if r.MultipartForm != nil {
		images = r.MultipartForm.File["images"]
	}

	oldIDs := product.MediaIDs
	newIDs := oldIDs
	if len(images) > 0 {
		imageIDs, err := h.Ingest.IngestBatch(ctx, images, media.KindImage, media.PostPolicy)
		if err != nil {
			respondIngestError(w, err)
			return
		}
		newIDs = imageIDs
		update["mediaIds"] = newIDs
		update["imageUrls"] = media.Refs(imageIDs)
	}

	if err := db.ProductsCollection.FindOneAndUpdate(ctx,
		bson.M{"productid": productID},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&product); err != nil {
		// The record still references the old blobs; drop the new uploads.
		if len(images) > 0 {
			h.Clean.OnOwnerMediaReplaced(ctx, newIDs, oldIDs)
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating product")
		return
	}

	// Record committed; now the stale blobs can go.
	if len(images) > 0 {
		h.Clean.OnOwnerMediaReplaced(ctx, oldIDs, newIDs)
	}

	go mq.Emit(globals.Ctx, "product-updated", mq.Index{EntityType: "product", EntityId: productID, Method: "PUT"})
	utils.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/:productid. The record goes
// first; blob cleanup is best-effort.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sellerID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || sellerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx := r.Context()
	productID := ps.ByName("productid")

	var product models.Product
	if err := db.ProductsCollection.FindOne(ctx, bson.M{"productid": productID}).Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if product.SellerID != sellerID {
		utils.RespondWithError(w, http.StatusForbidden, "You can only delete your own products")
		return
	}

	if _, err := db.ProductsCollection.DeleteOne(ctx, bson.M{"productid": productID}); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting product")
		return
	}

	h.Clean.OnOwnerDeleted(ctx, product.MediaIDs)

	go mq.Emit(globals.Ctx, "product-deleted", mq.Index{EntityType: "product", EntityId: productID, Method: "DELETE"})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func respondIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, media.ErrInvalid) {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save media")
}
