package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/models"
	"craftriver/notify"
	"craftriver/rdx"
	"craftriver/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const profileCacheTTL = 10 * time.Minute

func cacheKey(userID string) string {
	return "profile:" + userID
}

// GetProfile handles GET /api/profile/:userid, serving from the Redis cache
// when possible.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("userid")

	if cached, err := rdx.RdxGet(cacheKey(userID)); err == nil && cached != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(cached))
		return
	}

	var user models.User
	err := db.UserCollection.FindOne(r.Context(), bson.M{"userid": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	summary := models.UserSummary{
		UserID:         user.UserID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		ProfilePicture: user.ProfilePicture,
		Bio:            user.Bio,
		Followers:      len(user.Followers),
	}

	if payload, err := json.Marshal(summary); err == nil {
		rdx.RdxSetWithTTL(cacheKey(userID), string(payload), profileCacheTTL)
	}
	utils.RespondWithJSON(w, http.StatusOK, summary)
}

type bioInput struct {
	Bio string `json:"bio"`
}

// UpdateBio handles PUT /api/profile/bio.
func (h *Handler) UpdateBio(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input bioInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	input.Bio = strings.TrimSpace(input.Bio)
	if len(input.Bio) > 500 {
		utils.RespondWithError(w, http.StatusBadRequest, "Bio must be 500 characters or fewer")
		return
	}

	res, err := db.UserCollection.UpdateOne(r.Context(),
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{"bio": input.Bio, "updatedAt": time.Now()}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating bio")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	rdx.RdxDel(cacheKey(userID))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"bio": input.Bio})
}

// Follow handles POST /api/profile/:userid/follow.
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	followerID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || followerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	targetID := ps.ByName("userid")
	if targetID == followerID {
		utils.RespondWithError(w, http.StatusBadRequest, "Cannot follow yourself")
		return
	}

	ctx := r.Context()
	res, err := db.UserCollection.UpdateOne(ctx,
		bson.M{"userid": targetID},
		bson.M{"$addToSet": bson.M{"followers": followerID}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error following user")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	if res.ModifiedCount > 0 {
		notify.Create(ctx, targetID, "follow", "You have a new follower", followerID)
	}
	rdx.RdxDel(cacheKey(targetID))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"following": true})
}

// Unfollow handles DELETE /api/profile/:userid/follow.
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	followerID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || followerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	res, err := db.UserCollection.UpdateOne(r.Context(),
		bson.M{"userid": ps.ByName("userid")},
		bson.M{"$pull": bson.M{"followers": followerID}},
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error unfollowing user")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	rdx.RdxDel(cacheKey(ps.ByName("userid")))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"following": false})
}

// GetSuggestions handles GET /api/profile/suggestions: recent users the
// caller does not already follow.
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{
		"userid":    bson.M{"$ne": userID},
		"followers": bson.M{"$ne": userID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(10)
	cur, err := db.UserCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch suggestions")
		return
	}
	defer cur.Close(ctx)

	suggestions := []models.UserSummary{}
	for cur.Next(ctx) {
		var user models.User
		if err := cur.Decode(&user); err != nil {
			continue
		}
		suggestions = append(suggestions, models.UserSummary{
			UserID:         user.UserID,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
			ProfilePicture: user.ProfilePicture,
			Bio:            user.Bio,
			Followers:      len(user.Followers),
		})
	}
	utils.RespondWithJSON(w, http.StatusOK, suggestions)
}
