package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_signal/internal/api/http/converter"
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/repository"
	"github.com/immxrtalbeast/axenix_signal/internal/service"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
)

type RoomController struct {
	rooms   service.RoomInteractor
	journal repository.EventJournal
	log     *slog.Logger
}

func NewRoomController(rooms service.RoomInteractor, journal repository.EventJournal, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms:   rooms,
		journal: journal,
		log:     log,
	}
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.RoomsToApi(c.rooms.List())})
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	roomID := ctx.Param("roomID")
	room, ok := c.rooms.Snapshot(roomID)
	if !ok {
		writeError(ctx, domain.Errorf(domain.CodeUnknownTarget, "room %q not found", roomID))
		return
	}

	resp := converter.RoomToApi(room)
	resp.Pending = c.rooms.Pending(roomID)
	ctx.JSON(http.StatusOK, gin.H{"room": resp})
}

func (c *RoomController) ListEvents(ctx *gin.Context) {
	const op = "api.http.room.listEvents"

	if c.journal == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "journal is disabled"})
		return
	}

	roomID := ctx.Param("roomID")
	events, err := c.journal.ListByRoom(ctx.Request.Context(), roomID)
	if err != nil {
		c.log.Error("failed to list room events",
			slog.String("op", op),
			slog.String("room_id", roomID),
			sl.Err(err),
		)
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"events": converter.EventsToApi(events)})
}
