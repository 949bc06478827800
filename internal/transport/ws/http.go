package ws

import (
	"bytes"
	"errors"
	"image"
	"net/http"
	"strconv"

	"blockedit.ai/internal/atlas"
	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/codec/blockjson"
	"blockedit.ai/internal/protocol"
)

// Routes registers the websocket endpoint and the read-only HTTP views.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", s.Handler())
	mux.HandleFunc("/v1/blocks", s.blocksHandler)
	mux.HandleFunc("/v1/blocks.schema.json", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/schema+json")
		_, _ = rw.Write([]byte(blockjson.SchemaText()))
	})
	mux.HandleFunc("/v1/atlas.png", s.atlasHandler)
	mux.HandleFunc("/v1/tile.png", s.tileHandler)
}

func (s *Server) blocksHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	recs := s.sess.Records()
	s.mu.Unlock()

	b, err := blockjson.Marshal(recs)
	if err != nil {
		httpError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(b)
}

// atlasHandler renders the atlas with its grid. sel=c,r draws the selection
// box; without it the selected block's side cell is used.
func (s *Server) atlasHandler(rw http.ResponseWriter, r *http.Request) {
	var sel *blocks.Cell
	if raw := r.URL.Query().Get("sel"); raw != "" {
		c, err := blocks.ParseCell(raw)
		if err != nil {
			httpError(rw, badRequest(err))
			return
		}
		sel = &c
	}

	s.mu.Lock()
	if sel == nil {
		if _, rec, ok := s.sess.Selected(); ok {
			sel = &rec.Atlas
		}
	}
	img := s.sess.Atlas().Overlay(sel)
	s.mu.Unlock()

	writePNG(rw, img)
}

// tileHandler serves one cell (cell=c,r) or the preview of one face of a
// block (index=i&face=top), dimmed when the face inherits.
func (s *Server) tileHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		img image.Image
		err error
	)
	switch {
	case q.Get("cell") != "":
		var c blocks.Cell
		c, err = blocks.ParseCell(q.Get("cell"))
		if err != nil {
			httpError(rw, badRequest(err))
			return
		}
		img, err = s.sess.Atlas().Tile(c)
	case q.Get("index") != "":
		i, perr := strconv.Atoi(q.Get("index"))
		if perr != nil {
			httpError(rw, badRequest(perr))
			return
		}
		face, ferr := blocks.ParseFace(q.Get("face"))
		if ferr != nil {
			httpError(rw, badRequest(ferr))
			return
		}
		var rec blocks.Record
		rec, err = s.sess.Record(i)
		if err == nil {
			img, _, err = s.sess.Atlas().Preview(rec, face)
		}
	default:
		httpError(rw, badRequest(errors.New("need cell or index")))
		return
	}
	if err != nil {
		httpError(rw, err)
		return
	}
	writePNG(rw, img)
}

func writePNG(rw http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := atlas.EncodePNG(&buf, img); err != nil {
		httpError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "image/png")
	_, _ = rw.Write(buf.Bytes())
}

func badRequest(err error) error {
	return errors.Join(protocol.ErrInvalidCmd, err)
}

func httpError(rw http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch protocol.CodeFor(err) {
	case protocol.ErrBadRequest:
		status = http.StatusBadRequest
	case protocol.ErrNotFound:
		status = http.StatusNotFound
	case protocol.ErrCapability:
		status = http.StatusNotImplemented
	}
	http.Error(rw, err.Error(), status)
}
