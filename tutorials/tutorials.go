package tutorials

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
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

const maxFormMemory = 128 << 20

// Handler serves the tutorial endpoints. Tutorials allow larger videos than
// posts, which is why the media policy rides on the handler calls.
type Handler struct {
	Ingest *media.Ingestor
	Clean  *media.Cleaner
}

// CreateTutorial handles POST /api/tutorials: multipart title, description,
// craftType, materials, steps (JSON array), images[] and an optional video.
func (h *Handler) CreateTutorial(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Title is required")
		return
	}

	steps, err := parseSteps(r.FormValue("steps"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid steps payload")
		return
	}

	var images []*multipart.FileHeader
	var video *multipart.FileHeader
	if r.MultipartForm != nil {
		images = r.MultipartForm.File["images"]
		if v := r.MultipartForm.File["video"]; len(v) > 0 {
			video = v[0]
		}
	}

	if video != nil {
		if err := h.Ingest.Validate(video, media.KindVideo, media.TutorialPolicy); err != nil {
			respondIngestError(w, err)
			return
		}
	}
	for _, img := range images {
		if err := h.Ingest.Validate(img, media.KindImage, media.TutorialPolicy); err != nil {
			respondIngestError(w, err)
			return
		}
	}

	ctx := r.Context()
	tut := models.Tutorial{
		TutorialID:  uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(r.FormValue("description")),
		CraftType:   strings.TrimSpace(r.FormValue("craftType")),
		Materials:   utils.SplitTags(r.FormValue("materials")),
		Steps:       steps,
		CreatedAt:   time.Now(),
	}

	var uploaded []string
	if video != nil {
		file, err := video.Open()
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Error reading video file")
			return
		}
		videoID, err := h.Ingest.Ingest(ctx, file, video, media.KindVideo, media.TutorialPolicy)
		file.Close()
		if err != nil {
			respondIngestError(w, err)
			return
		}
		uploaded = append(uploaded, videoID)
		tut.VideoURL = media.Ref(videoID)
	}
	if len(images) > 0 {
		imageIDs, err := h.Ingest.IngestBatch(ctx, images, media.KindImage, media.TutorialPolicy)
		if err != nil {
			h.Clean.OnOwnerDeleted(ctx, uploaded)
			respondIngestError(w, err)
			return
		}
		uploaded = append(uploaded, imageIDs...)
		tut.ImageURLs = media.Refs(imageIDs)
	}
	tut.MediaIDs = uploaded

	if _, err := db.TutorialsCollection.InsertOne(ctx, tut); err != nil {
		h.Clean.OnOwnerDeleted(ctx, uploaded)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving tutorial")
		return
	}

	go mq.Emit(globals.Ctx, "tutorial-created", mq.Index{EntityType: "tutorial", EntityId: tut.TutorialID, Method: "POST"})
	utils.RespondWithJSON(w, http.StatusCreated, tut)
}

// GetTutorials handles GET /api/tutorials with an optional craftType filter.
func (h *Handler) GetTutorials(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if ct := strings.TrimSpace(r.URL.Query().Get("craftType")); ct != "" {
		filter["craftType"] = ct
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := db.TutorialsCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch tutorials")
		return
	}
	defer cur.Close(ctx)

	tutorials := []models.Tutorial{}
	if err := cur.All(ctx, &tutorials); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to decode tutorials")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tutorials)
}

// GetTutorial handles GET /api/tutorials/:tutorialid.
func (h *Handler) GetTutorial(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var tut models.Tutorial
	err := db.TutorialsCollection.FindOne(r.Context(), bson.M{"tutorialid": ps.ByName("tutorialid")}).Decode(&tut)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.RespondWithError(w, http.StatusNotFound, "Tutorial not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tut)
}

// UpdateTutorial handles PUT /api/tutorials/:tutorialid. New media commits
// before the stale blobs are removed.
func (h *Handler) UpdateTutorial(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}

	ctx := r.Context()
	tutorialID := ps.ByName("tutorialid")

	var tut models.Tutorial
	if err := db.TutorialsCollection.FindOne(ctx, bson.M{"tutorialid": tutorialID}).Decode(&tut); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Tutorial not found")
		return
	}
	if tut.UserID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "You can only update your own tutorials")
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if v := strings.TrimSpace(r.FormValue("title")); v != "" {
		update["title"] = v
	}
	if v := r.FormValue("description"); v != "" {
		update["description"] = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(r.FormValue("craftType")); v != "" {
		update["craftType"] = v
	}
	if v := r.FormValue("materials"); v != "" {
		update["materials"] = utils.SplitTags(v)
	}
	if v := r.FormValue("steps"); v != "" {
		steps, err := parseSteps(v)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid steps payload")
			return
		}
		update["steps"] = steps
	}

	var images []*multipart.FileHeader
	if r.MultipartForm != nil {
		images = r.MultipartForm.File["images"]
	}

	oldIDs := tut.MediaIDs
	newIDs := oldIDs
	if len(images) > 0 {
		imageIDs, err := h.Ingest.IngestBatch(ctx, images, media.KindImage, media.TutorialPolicy)
		if err != nil {
			respondIngestError(w, err)
			return
		}
		newIDs = imageIDs
		if tut.VideoURL != "" {
			newIDs = append([]string{media.IDFromRef(tut.VideoURL)}, imageIDs...)
		}
		update["mediaIds"] = newIDs
		update["imageUrls"] = media.Refs(imageIDs)
	}

	if err := db.TutorialsCollection.FindOneAndUpdate(ctx,
		bson.M{"tutorialid": tutorialID},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tut); err != nil {
		if len(images) > 0 {
			h.Clean.OnOwnerMediaReplaced(ctx, newIDs, oldIDs)
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating tutorial")
		return
	}

	if len(images) > 0 {
		h.Clean.OnOwnerMediaReplaced(ctx, oldIDs, newIDs)
	}

	go mq.Emit(globals.Ctx, "tutorial-updated", mq.Index{EntityType: "tutorial", EntityId: tutorialID, Method: "PUT"})
	utils.RespondWithJSON(w, http.StatusOK, tut)
}

// DeleteTutorial handles DELETE /api/tutorials/:tutorialid.
func (h *Handler) DeleteTutorial(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx := r.Context()
	tutorialID := ps.ByName("tutorialid")

	var tut models.Tutorial
	if err := db.TutorialsCollection.FindOne(ctx, bson.M{"tutorialid": tutorialID}).Decode(&tut); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Tutorial not found")
		return
	}
	if tut.UserID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "You can only delete your own tutorials")
		return
	}

	if _, err := db.TutorialsCollection.DeleteOne(ctx, bson.M{"tutorialid": tutorialID}); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting tutorial")
		return
	}

	h.Clean.OnOwnerDeleted(ctx, tut.MediaIDs)

	// Orphaned progress rows are noise, not data.
	db.ProgressCollection.DeleteMany(ctx, bson.M{"tutorialid": tutorialID})

	go mq.Emit(globals.Ctx, "tutorial-deleted", mq.Index{EntityType: "tutorial", EntityId: tutorialID, Method: "DELETE"})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

func parseSteps(raw string) ([]models.TutorialStep, error) {
	steps := []models.TutorialStep{}
	if strings.TrimSpace(raw) == "" {
		return steps, nil
	}
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func respondIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, media.ErrInvalid) {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save media")
}
