package posts

import (
	"encoding/json"
	"net/http"

	"craftriver/db"
	"craftriver/globals"
	"craftriver/models"
	"craftriver/notify"
	"craftriver/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var allowedReactions = map[string]bool{
	"like": true, "love": true, "wow": true, "clap": true,
}

type reactionInput struct {
	Reaction string `json:"reaction"`
}

// ToggleLike handles POST /api/posts/:postid/like. A second call from the
// same user removes the like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	ctx := r.Context()
	postID := ps.ByName("postid")

	var post models.Post
	if err := db.PostsCollection.FindOne(ctx, bson.M{"postid": postID}).Decode(&post); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Post not found")
		return
	}

	liked := false
	for _, id := range post.LikedBy {
		if id == userID {
			liked = true
			break
		}
	}

	var update bson.M
	if liked {
		update = bson.M{"$pull": bson.M{"likedBy": userID}}
	} else {
		update = bson.M{"$addToSet": bson.M{"likedBy": userID}}
	}

	if err := db.PostsCollection.FindOneAndUpdate(ctx,
		bson.M{"postid": postID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating like")
		return
	}

	if !liked && post.UserID != userID {
		notify.Create(ctx, post.UserID, "like", "Someone liked your post", postID)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"liked":     !liked,
		"likeCount": len(post.LikedBy),
	})
}

// SetReaction handles PUT /api/posts/:postid/reaction. Sending the same
// reaction twice clears it; sending a different one switches it.
func (h *Handler) SetReaction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user")
		return
	}

	var input reactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || !allowedReactions[input.Reaction] {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown reaction")
		return
	}

	ctx := r.Context()
	postID := ps.ByName("postid")

	var post models.Post
	if err := db.PostsCollection.FindOne(ctx, bson.M{"postid": postID}).Decode(&post); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Post not found")
		return
	}

	if post.UserReactions == nil {
		post.UserReactions = map[string]string{}
	}
	if post.ReactionCounts == nil {
		post.ReactionCounts = map[string]int{}
	}

	previous := post.UserReactions[userID]
	if previous != "" {
		if post.ReactionCounts[previous] > 0 {
			post.ReactionCounts[previous]--
		}
		delete(post.UserReactions, userID)
	}
	if previous != input.Reaction {
		post.UserReactions[userID] = input.Reaction
		post.ReactionCounts[input.Reaction]++
	}

	if _, err := db.PostsCollection.UpdateOne(ctx,
		bson.M{"postid": postID},
		bson.M{"$set": bson.M{
			"userReactions":  post.UserReactions,
			"reactionCounts": post.ReactionCounts,
		}},
	); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating reaction")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"reaction":       post.UserReactions[userID],
		"reactionCounts": post.ReactionCounts,
	})
}
