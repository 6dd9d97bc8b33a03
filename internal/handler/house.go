package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/service"
	"github.com/dukerupert/flatmate/internal/websocket"
)

type HouseHandler struct {
	houses         *service.HouseService
	hub            *websocket.Hub
	originPatterns []string
	logger         *slog.Logger
}

// NewHouseHandler builds the house endpoints. originPatterns are the host
// patterns accepted for websocket upgrades.
func NewHouseHandler(houses *service.HouseService, hub *websocket.Hub, originPatterns []string, logger *slog.Logger) *HouseHandler {
	return &HouseHandler{houses: houses, hub: hub, originPatterns: originPatterns, logger: logger}
}

type houseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type joinRequest struct {
	Code string `json:"code"`
}

func (h *HouseHandler) List(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	houses, err := h.houses.List(me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if houses == nil {
		houses = []model.HouseSummary{}
	}
	writeJSON(w, http.StatusOK, houses)
}

func (h *HouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req houseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	house, err := h.houses.Create(me, req.Name, req.Description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, house)
}

func (h *HouseHandler) Join(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	house, err := h.houses.Join(me, req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(house.ID, websocket.NewMessage("member", "joined", me.UserID, nil))

	writeJSON(w, http.StatusOK, house)
}

func (h *HouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	house, err := h.houses.Get(me, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, house)
}

func (h *HouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.houses.Delete(me, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(id, websocket.NewMessage("house", "deleted", id, nil))
	h.hub.CloseHouse(id)

	writeMessage(w, "House deleted")
}

func (h *HouseHandler) Exit(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.houses.Exit(me, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.DropUser(id, me.UserID)
	h.hub.Broadcast(id, websocket.NewMessage("member", "left", me.UserID, nil))

	writeMessage(w, "Exited house")
}

func (h *HouseHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	members, err := h.houses.ListMembers(me, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if members == nil {
		members = []model.Flatmate{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *HouseHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var ref service.MemberRef
	if err := decodeJSON(w, r, &ref); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	member, err := h.houses.AddMember(me, id, ref)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(id, websocket.NewMessage("member", "added", member.User.ID, nil))

	writeJSON(w, http.StatusCreated, member)
}

// Live upgrades a member's request to a websocket subscribed to the house.
func (h *HouseHandler) Live(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.houses.RequireMember(me, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	websocket.Serve(h.hub, w, r, id, me.UserID, h.originPatterns)
}
