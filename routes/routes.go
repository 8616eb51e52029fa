package routes

import (
	"craftriver/auth"
	"craftriver/media"
	"craftriver/middleware"
	"craftriver/msgs"
	"craftriver/notify"
	"craftriver/posts"
	"craftriver/products"
	"craftriver/profile"
	"craftriver/ratelim"
	"craftriver/tutorials"

	"github.com/julienschmidt/httprouter"
)

// Handlers bundles the constructed handler sets main wires together.
type Handlers struct {
	Media     *media.Handler
	Posts     *posts.Handler
	Tutorials *tutorials.Handler
	Products  *products.Handler
	Profile   *profile.Handler
	Msgs      *msgs.Handler
}

func RoutesWrapper(router *httprouter.Router, rl *ratelim.RateLimiter, h Handlers) {
	AddAuthRoutes(router, rl)
	AddMediaRoutes(router, rl, h.Media)
	AddPostRoutes(router, rl, h.Posts)
	AddTutorialRoutes(router, rl, h.Tutorials)
	AddProductRoutes(router, rl, h.Products)
	AddProfileRoutes(router, rl, h.Profile)
	AddMessageRoutes(router, rl, h.Msgs)
	AddNotificationRoutes(router, rl)
}

func AddAuthRoutes(router *httprouter.Router, rl *ratelim.RateLimiter) {
	router.POST("/api/auth/register", rl.Limit(auth.Register))
	router.POST("/api/auth/login", rl.Limit(auth.Login))
}

func AddMediaRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *media.Handler) {
	router.GET("/api/media/:id", rl.Limit(h.GetMedia))
	router.HEAD("/api/media/:id", h.GetMedia)
}

func AddPostRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *posts.Handler) {
	router.GET("/api/posts", middleware.OptionalAuth(h.GetAllPosts))
	router.GET("/api/posts/user/:userid", middleware.OptionalAuth(h.GetUserPosts))
	router.POST("/api/posts", rl.Limit(middleware.Authenticate(h.CreatePost)))
	router.PUT("/api/posts/:postid", rl.Limit(middleware.Authenticate(h.UpdatePost)))
	router.DELETE("/api/posts/:postid", middleware.Authenticate(h.DeletePost))

	router.POST("/api/posts/:postid/comments", rl.Limit(middleware.Authenticate(h.AddComment)))
	router.PUT("/api/posts/:postid/comments/:commentid", middleware.Authenticate(h.UpdateComment))
	router.DELETE("/api/posts/:postid/comments/:commentid", middleware.Authenticate(h.DeleteComment))

	router.POST("/api/posts/:postid/like", rl.Limit(middleware.Authenticate(h.ToggleLike)))
	router.PUT("/api/posts/:postid/reaction", rl.Limit(middleware.Authenticate(h.SetReaction)))
}

func AddTutorialRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *tutorials.Handler) {
	router.GET("/api/tutorials", rl.Limit(h.GetTutorials))
	router.GET("/api/tutorials/:tutorialid", h.GetTutorial)
	router.POST("/api/tutorials", rl.Limit(middleware.Authenticate(h.CreateTutorial)))
	router.PUT("/api/tutorials/:tutorialid", rl.Limit(middleware.Authenticate(h.UpdateTutorial)))
	router.DELETE("/api/tutorials/:tutorialid", middleware.Authenticate(h.DeleteTutorial))

	router.GET("/api/tutorials/:tutorialid/progress", middleware.Authenticate(h.GetProgress))
	router.PUT("/api/tutorials/:tutorialid/progress", middleware.Authenticate(h.UpdateProgress))
}

func AddProductRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *products.Handler) {
	router.GET("/api/products", rl.Limit(h.GetAllProducts))
	router.GET("/api/products/:productid", h.GetProduct)
	router.POST("/api/products", rl.Limit(middleware.Authenticate(h.CreateProduct)))
	router.PUT("/api/products/:productid", rl.Limit(middleware.Authenticate(h.UpdateProduct)))
	router.DELETE("/api/products/:productid", middleware.Authenticate(h.DeleteProduct))
}

func AddProfileRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *profile.Handler) {
	router.GET("/api/suggestions/users", middleware.Authenticate(h.GetSuggestions))
	router.GET("/api/profile/:userid", rl.Limit(h.GetProfile))
	router.GET("/api/profile/:userid/picture", h.GetProfilePicture)
	router.PUT("/api/profile/bio", middleware.Authenticate(h.UpdateBio))
	router.PUT("/api/profile/picture", rl.Limit(middleware.Authenticate(h.UpdateProfilePicture)))
	router.POST("/api/profile/:userid/follow", middleware.Authenticate(h.Follow))
	router.DELETE("/api/profile/:userid/follow", middleware.Authenticate(h.Unfollow))
}

func AddMessageRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, h *msgs.Handler) {
	router.GET("/ws/messages", middleware.Authenticate(h.WebSocket))
	router.GET("/api/messages", middleware.Authenticate(h.ListConversations))
	router.GET("/api/messages/:userid", middleware.Authenticate(h.GetConversation))
	router.POST("/api/messages", rl.Limit(middleware.Authenticate(h.SendMessage)))
	router.PUT("/api/messages/:userid/read", middleware.Authenticate(h.MarkConversationRead))
}

func AddNotificationRoutes(router *httprouter.Router, rl *ratelim.RateLimiter) {
	router.GET("/api/notifications", middleware.Authenticate(notify.GetNotifications))
	// Mark-all lives on the collection so it cannot collide with :id.
	router.PUT("/api/notifications", middleware.Authenticate(notify.MarkAllRead))
	router.PUT("/api/notifications/:id/read", middleware.Authenticate(notify.MarkRead))
}
