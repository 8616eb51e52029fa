package profile

import (
	"errors"
	"net/http"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/media"
	"craftriver/models"
	"craftriver/rdx"
	"craftriver/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Handler serves the profile endpoints.
type Handler struct {
	Ingest *media.Ingestor
	Clean  *media.Cleaner
}

// GetProfilePicture handles GET /api/profile/:userid/picture, redirecting to
// the stored media reference.
func (h *Handler) GetProfilePicture(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var user models.User
	err := db.UserCollection.FindOne(r.Context(), bson.M{"userid": ps.ByName("userid")}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user.ProfilePicture == "" {
		utils.RespondWithError(w, http.StatusNotFound, "No profile picture set")
		return
	}
	http.Redirect(w, r, user.ProfilePicture, http.StatusFound)
}

// UpdateProfilePicture handles PUT /api/profile/picture. The new blob is
// uploaded and committed to the user record before the old one is deleted, so
// a failed upload never leaves the profile pointing at nothing.
func (h *Handler) UpdateProfilePicture(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(media.ProfilePolicy.ProfileMaxBytes + (1 << 20)); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	file, header, err := r.FormFile("picture")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Picture file is required")
		return
	}
	defer file.Close()

	ctx := r.Context()

	var user models.User
	if err := db.UserCollection.FindOne(ctx, bson.M{"userid": userID}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	newID, err := h.Ingest.Ingest(ctx, file, header, media.KindProfile, media.ProfilePolicy)
	if err != nil {
		if errors.Is(err, media.ErrInvalid) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save picture")
		return
	}

	newRef := media.Ref(newID)
	if _, err := db.UserCollection.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{"profilePicture": newRef, "updatedAt": time.Now()}},
	); err != nil {
		// The record still points at the old picture; drop the new blob.
		h.Clean.OnOwnerDeleted(ctx, []string{newID})
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating profile")
		return
	}

	// Committed; the previous blob is now unreferenced.
	if user.ProfilePicture != "" {
		h.Clean.OnOwnerDeleted(ctx, []string{media.IDFromRef(user.ProfilePicture)})
	}

	rdx.RdxDel(cacheKey(userID))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"profilePicture": newRef})
}
