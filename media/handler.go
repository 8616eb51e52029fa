package media

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Handler exposes the media server over the router.
type Handler struct {
	Srv *Server
}

// GetMedia handles GET /api/media/:id.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.Srv.Serve(w, r, ps.ByName("id"))
}
