package tutorials

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/models"
	"craftriver/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type progressInput struct {
	CompletedSteps []int `json:"completedSteps"`
}

// UpdateProgress handles PUT /api/tutorials/:tutorialid/progress, upserting
// the caller's completed-step list.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input progressInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx := r.Context()
	tutorialID := ps.ByName("tutorialid")

	var tut models.Tutorial
	if err := db.TutorialsCollection.FindOne(ctx, bson.M{"tutorialid": tutorialID}).Decode(&tut); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Tutorial not found")
		return
	}

	for _, step := range input.CompletedSteps {
		if step < 0 || step >= len(tut.Steps) {
			utils.RespondWithError(w, http.StatusBadRequest, "Step index out of range")
			return
		}
	}

	completed := make(map[int]bool, len(input.CompletedSteps))
	steps := input.CompletedSteps[:0]
	for _, s := range input.CompletedSteps {
		if !completed[s] {
			completed[s] = true
			steps = append(steps, s)
		}
	}

	progress := models.UserProgress{
		UserID:         userID,
		TutorialID:     tutorialID,
		CompletedSteps: steps,
		Completed:      len(tut.Steps) > 0 && len(steps) == len(tut.Steps),
		UpdatedAt:      time.Now(),
	}

	if _, err := db.ProgressCollection.UpdateOne(ctx,
		bson.M{"userid": userID, "tutorialid": tutorialID},
		bson.M{"$set": progress},
		options.Update().SetUpsert(true),
	); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving progress")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, progress)
}

// GetProgress handles GET /api/tutorials/:tutorialid/progress. A user with no
// record gets empty progress, not a 404.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var progress models.UserProgress
	err := db.ProgressCollection.FindOne(r.Context(),
		bson.M{"userid": userID, "tutorialid": ps.ByName("tutorialid")},
	).Decode(&progress)
	if errors.Is(err, mongo.ErrNoDocuments) {
		progress = models.UserProgress{
			UserID:         userID,
			TutorialID:     ps.ByName("tutorialid"),
			CompletedSteps: []int{},
		}
		utils.RespondWithJSON(w, http.StatusOK, progress)
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, progress)
}
