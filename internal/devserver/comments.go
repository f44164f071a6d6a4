package devserver

import (
	"errors"
	"net/http"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

type commentJSON struct {
	ID             int           `json:"id"`
	Content        string        `json:"content"`
	AuthorUsername string        `json:"authorUsername"`
	CreatedAt      api.Timestamp `json:"createdAt"`
	Pinned         bool          `json:"pinned"`
}

func toCommentJSON(c model.Comment) commentJSON {
	return commentJSON{
		ID:             c.ID,
		Content:        c.Content,
		AuthorUsername: c.AuthorUsername,
		CreatedAt:      api.Timestamp{Time: c.CreatedAt},
		Pinned:         c.Pinned,
	}
}

type commentListJSON struct {
	Pinned   []commentJSON `json:"pinned"`
	Unpinned []commentJSON `json:"unpinned"`
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.requireRole(w, r, "")
	if !ok {
		return
	}
	comments, err := s.store.ListComments(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	out := commentListJSON{Pinned: []commentJSON{}, Unpinned: []commentJSON{}}
	for _, c := range comments {
		if c.Pinned {
			out.Pinned = append(out.Pinned, toCommentJSON(c))
		} else {
			out.Unpinned = append(out.Unpinned, toCommentJSON(c))
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.requireRole(w, r, "")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.store.AddComment(r.Context(), id, currentUser(r.Context()).ID, req.Content)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toCommentJSON(*c))
}

// commentTarget resolves project and comment ids and the comment's author.
func (s *Server) commentTarget(w http.ResponseWriter, r *http.Request) (projectID, commentID, author int, ok bool) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, 0, false
	}
	commentID, err = pathID(r, "commentID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, 0, false
	}
	author, err = s.store.CommentAuthor(r.Context(), projectID, commentID)
	if errors.Is(err, store.ErrNotFound) {
		writeText(w, http.StatusNotFound, "Comment does not belong to this project.")
		return 0, 0, 0, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return 0, 0, 0, false
	}
	return projectID, commentID, author, true
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	projectID, commentID, author, ok := s.commentTarget(w, r)
	if !ok {
		return
	}
	u := currentUser(r.Context())
	if author != u.ID && !isAdmin(u) {
		writeText(w, http.StatusForbidden, "You are not allowed to delete this comment.")
		return
	}
	if err := s.store.DeleteComment(r.Context(), projectID, commentID); err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	projectID, commentID, _, ok := s.commentTarget(w, r)
	if !ok {
		return
	}
	role, err := s.projectRole(r.Context(), projectID, currentUser(r.Context()))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if role != model.ProjectRoleManager {
		writeText(w, http.StatusForbidden, "You are not allowed to pin comments.")
		return
	}
	if _, err := s.store.TogglePin(r.Context(), projectID, commentID); err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
