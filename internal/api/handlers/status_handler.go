package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clipscribe/clipscribe/internal/store"
	"github.com/clipscribe/clipscribe/internal/utils"
	"github.com/clipscribe/clipscribe/internal/workers"
)

type StatusHandler struct {
	worker *workers.PipelineWorker
	store  *store.Store
}

func NewStatusHandler(worker *workers.PipelineWorker, st *store.Store) *StatusHandler {
	return &StatusHandler{worker: worker, store: st}
}

func (h *StatusHandler) Status(c *gin.Context) {
	const op = "StatusHandler.Status"

	infos, err := h.store.ListTranscripts()
	if err != nil {
		writeError(c, utils.E(utils.CodeStorage, op, "list transcripts", err))
		return
	}

	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		paths = append(paths, info.Path)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      h.worker.Status(),
		"transcripts": paths,
	})
}

func (h *StatusHandler) Latest(c *gin.Context) {
	const op = "StatusHandler.Latest"

	info, content, err := h.store.LatestTranscript()
	if err != nil {
		if errors.Is(err, store.ErrNoTranscripts) {
			c.JSON(http.StatusOK, gin.H{"message": "No transcripts available"})
			return
		}
		writeError(c, utils.E(utils.CodeStorage, op, "read latest transcript", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":  filepath.Base(info.Path),
		"content":   content,
		"timestamp": info.ModifiedAt.UTC().Format(time.RFC3339),
	})
}
