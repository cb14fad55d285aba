package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jaminalder/codex-reversi/internal/app"
	"github.com/jaminalder/codex-reversi/internal/domain"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	heartbeat time.Duration
}

func (h *handlers) renderBoard(bs app.BoardState, player domain.Player, verdict, errMsg string) []byte {
	if !player.Valid() {
		player = domain.One
	}
	data := boardView{
		ID:      bs.ID,
		Rows:    bs.Board.Grid(),
		Result:  bs.Board.Result(),
		Player:  player,
		Verdict: verdict,
		Error:   errMsg,
	}
	return renderTemplate(h.tpl.board, "", data)
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, "base", nil))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.CreateStandard()
	if err != nil {
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/board/"+bs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	bs, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	data := struct {
		ID        string
		BoardHTML template.HTML
	}{ID: bs.ID, BoardHTML: template.HTML(h.renderBoard(*bs, domain.One, "", ""))}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.page, "base", data))
}

func (h *handlers) fragment(w http.ResponseWriter, r *http.Request) {
	bs, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*bs, domain.One, "", ""))
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := r.ParseForm(); err != nil {
		_, _ = w.Write(h.renderBoard(*bs, domain.One, "", "Invalid request"))
		return
	}
	player := parsePlayerCode(r.Form.Get("player"))
	ri, errR := strconv.Atoi(r.Form.Get("r"))
	ci, errC := strconv.Atoi(r.Form.Get("c"))
	if errR != nil || errC != nil {
		_, _ = w.Write(h.renderBoard(*bs, player, "", "Out of bounds"))
		return
	}

	var verdict, errMsg string
	valid, err := h.svc.CheckMove(id, player, ri, ci)
	switch {
	case valid:
		verdict = "Valid move"
	case err == nil:
		verdict = "Invalid move"
	default:
		switch {
		case errors.Is(err, domain.ErrOutOfBounds):
			errMsg = "Out of bounds"
		case errors.Is(err, domain.ErrInvalidPlayer):
			errMsg = "Unknown player"
		case errors.Is(err, app.ErrNotFound):
			http.NotFound(w, r)
			return
		default:
			errMsg = "Invalid request"
		}
	}
	_, _ = w.Write(h.renderBoard(*bs, player, verdict, errMsg))
}

// parsePlayerCode maps a form or query value onto a Player without
// validating it; codes that do not fit become NoPlayer so IsValidMove
// still runs its bounds check first.
func parsePlayerCode(v string) domain.Player {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 255 {
		return domain.NoPlayer
	}
	return domain.Player(n)
}

// writeEvent frames payload as one SSE event, prefixing every line with
// "data: " so multi-line fragments survive EventSource parsing.
func writeEvent(w io.Writer, event string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(string(payload), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", strings.TrimSuffix(line, "\r"))
	}
	_, _ = io.WriteString(w, "\n")
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub := h.svc.Subscribe(ctx, id)
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}

// JSON API

type boardDoc struct {
	ID     string          `json:"id"`
	Grid   [][]domain.Cell `json:"grid"`
	Result domain.Result   `json:"result"`
}

type gridRequest struct {
	Grid [][]domain.Cell `json:"grid"`
}

func newBoardDoc(bs *app.BoardState) boardDoc {
	return boardDoc{ID: bs.ID, Grid: bs.Board.Grid(), Result: bs.Board.Result()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps service and domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrShape):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRange), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeGrid(r *http.Request) (gridRequest, error) {
	var req gridRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func (h *handlers) apiCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGrid(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var bs *app.BoardState
	if req.Grid == nil {
		bs, err = h.svc.CreateStandard()
	} else {
		bs, err = h.svc.CreateFromGrid(req.Grid)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Location", "/api/boards/"+bs.ID)
	writeJSON(w, http.StatusCreated, newBoardDoc(bs))
}

func (h *handlers) apiGet(w http.ResponseWriter, r *http.Request) {
	bs, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, app.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newBoardDoc(bs))
}

func (h *handlers) apiReplace(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGrid(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bs, err := h.svc.Replace(chi.URLParam(r, "id"), req.Grid)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardDoc(bs))
}

func (h *handlers) apiDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) apiResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Result(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) apiFields(w http.ResponseWriter, r *http.Request) {
	state, err := domain.ParseCell(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	fields, err := h.svc.Fields(chi.URLParam(r, "id"), state)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(fields))
}

func (h *handlers) apiMoves(w http.ResponseWriter, r *http.Request) {
	player, err := domain.ParsePlayer(r.URL.Query().Get("player"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	moves, err := h.svc.ValidMoves(chi.URLParam(r, "id"), player)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(moves))
}

func (h *handlers) apiCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	row, errR := strconv.Atoi(q.Get("row"))
	col, errC := strconv.Atoi(q.Get("col"))
	if errR != nil || errC != nil {
		writeError(w, http.StatusBadRequest, domain.ErrOutOfBounds)
		return
	}
	player := parsePlayerCode(q.Get("player"))
	valid, err := h.svc.CheckMove(chi.URLParam(r, "id"), player, row, col)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func nonNil(cs []domain.Coord) []domain.Coord {
	if cs == nil {
		return []domain.Coord{}
	}
	return cs
}
