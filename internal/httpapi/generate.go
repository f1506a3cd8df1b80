package httpapi

import (
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"textgend/internal/generation"
	"textgend/pkg/types"
)

// generate godoc
// @Summary      Generate text
// @Description  Streams generation events as NDJSON, one types.Message per line.
// @Description  Errors found before the stream starts map to status codes; later
// @Description  errors arrive as an event with status "error".
// @Tags         generate
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body      types.GenerateRequest  true  "Generation request"
// @Success      200      {object}  types.Message
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Router       /generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var in types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rl := newRunLog(r, r.URL.Path, in.ModelID)
	req, err := h.svc.Prepare(generation.FromAPI(in))
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	out := io.Writer(w)
	if rl.lvl >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{log: rl.log})
	}
	enc := json.NewEncoder(out)

	ctx, cancel := runContext(r.Context())
	defer cancel()
	err = h.svc.Generate(ctx, req, func(ev generation.Event) {
		msg := generation.ToMessage(ev)
		if msg.ErrorKind == generation.KindBusy {
			IncrementBackpressure("busy")
		}
		streamedEventsTotal.WithLabelValues("ndjson", msg.Status).Inc()
		// write errors mean the client is gone; the run stops on ctx
		_ = enc.Encode(msg)
		flush()
	})
	rl.end(http.StatusOK, err)
}
