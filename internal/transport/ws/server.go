package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/editor"
	"blockedit.ai/internal/protocol"
)

const (
	outQueue     = 16
	writeTimeout = 5 * time.Second
	readTimeout  = 10 * time.Minute
)

// Server shares one editor session between every connected client. All
// session access goes through mu.
type Server struct {
	log *log.Logger

	mu      sync.Mutex
	sess    *editor.Session
	seq     uint64
	clients map[uint64]chan []byte

	nextID   atomic.Uint64
	upgrader websocket.Upgrader
}

func NewServer(sess *editor.Session, logger *log.Logger) *Server {
	return &Server{
		log:     logger,
		sess:    sess,
		clients: map[uint64]chan []byte{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out := s.handshake(conn)
		if out == nil {
			return
		}
		defer s.unregister(id)
		local := isLoopbackRemote(r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd {
				continue
			}
			cmd, err := protocol.DecodeCmd(msg)
			if err == nil && cmd.ProtocolVersion != protocol.Version {
				err = fmt.Errorf("%w: protocol_version %q, want %q", protocol.ErrInvalidCmd, cmd.ProtocolVersion, protocol.Version)
			}
			if err == nil && cmd.Path != "" && !local {
				err = fmt.Errorf("%w: path is only accepted from loopback clients", protocol.ErrInvalidCmd)
			}
			if err != nil {
				s.send(out, protocol.NewError(cmd.ReqID, err))
				continue
			}
			s.apply(ctx, out, cmd)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (uint64, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return 0, nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return 0, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return 0, nil
	}

	id := s.nextID.Add(1)
	out := make(chan []byte, outQueue)

	s.mu.Lock()
	st := s.stateLocked(nil)
	s.clients[id] = out
	s.mu.Unlock()

	st.ClientID = uuid.NewString()
	if err := writeJSON(conn, st); err != nil {
		s.unregister(id)
		return 0, nil
	}
	name := hello.ClientName
	if name == "" {
		name = "client"
	}
	s.logf("%s connected as %s", name, st.ClientID)
	return id, out
}

func (s *Server) unregister(id uint64) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// apply runs one command against the session. Errors go back to the sender
// only; a successful command broadcasts STATE to everyone.
func (s *Server) apply(ctx context.Context, out chan []byte, cmd protocol.CmdMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execLocked(ctx, cmd)
	if err != nil {
		s.send(out, protocol.NewError(cmd.ReqID, err))
		return
	}
	res.ReqID = cmd.ReqID
	res.Op = cmd.Op
	st := s.stateLocked(&res)
	b, err := json.Marshal(st)
	if err != nil {
		s.send(out, protocol.NewError(cmd.ReqID, err))
		return
	}
	for _, ch := range s.clients {
		select {
		case ch <- b:
		default:
			// Drop if the client falls behind; the next STATE carries everything.
		}
	}
}

func (s *Server) execLocked(ctx context.Context, cmd protocol.CmdMsg) (protocol.CmdResult, error) {
	index := func() (int, error) {
		if cmd.Index != nil {
			return *cmd.Index, nil
		}
		if i, _, ok := s.sess.Selected(); ok {
			return i, nil
		}
		return -1, fmt.Errorf("%w: %s needs an index or a selected block", protocol.ErrInvalidCmd, cmd.Op)
	}

	switch cmd.Op {
	case protocol.OpSelect:
		i := -1
		if cmd.Index != nil {
			i = *cmd.Index
		}
		_, err := s.sess.Select(i)
		return protocol.CmdResult{Index: i}, err

	case protocol.OpAdd:
		i, r := s.sess.Add()
		return protocol.CmdResult{Index: i, Detail: r.Label()}, nil

	case protocol.OpDelete:
		i, err := index()
		if err != nil {
			return protocol.CmdResult{}, err
		}
		r, err := s.sess.Delete(i)
		return protocol.CmdResult{Index: i, Detail: r.Label()}, err

	case protocol.OpUpdate:
		i, err := index()
		if err != nil {
			return protocol.CmdResult{}, err
		}
		p, err := blocks.ParsePatch(cmd.Set)
		if err != nil {
			return protocol.CmdResult{}, fmt.Errorf("%w: %v", protocol.ErrInvalidCmd, err)
		}
		_, err = s.sess.Update(i, p)
		return protocol.CmdResult{Index: i}, err

	case protocol.OpPreset:
		i, err := index()
		if err != nil {
			return protocol.CmdResult{}, err
		}
		_, err = s.sess.ApplySoundPreset(i, strings.ToUpper(cmd.Preset))
		return protocol.CmdResult{Index: i, Detail: cmd.Preset}, err

	case protocol.OpTexture:
		i, err := index()
		if err != nil {
			return protocol.CmdResult{}, err
		}
		face, err := blocks.ParseFace(cmd.Face)
		if err != nil {
			return protocol.CmdResult{}, fmt.Errorf("%w: %v", protocol.ErrInvalidCmd, err)
		}
		if cmd.Reset {
			_, err = s.sess.ResetTexture(i, face)
			return protocol.CmdResult{Index: i, Detail: string(face)}, err
		}
		if cmd.Cell == nil {
			return protocol.CmdResult{}, fmt.Errorf("%w: texture needs a cell or reset", protocol.ErrInvalidCmd)
		}
		_, err = s.sess.PickTexture(i, face, *cmd.Cell)
		return protocol.CmdResult{Index: i, Detail: fmt.Sprintf("%s=%s", face, *cmd.Cell)}, err

	case protocol.OpSave:
		res, err := s.sess.Save(ctx, cmd.Path)
		if err != nil {
			return protocol.CmdResult{}, err
		}
		s.logf("saved %s (%d bytes)", res.Path, res.Bytes)
		return protocol.CmdResult{Index: -1, Detail: res.SaveID}, nil

	case protocol.OpReload:
		path := cmd.Path
		if path == "" {
			path = s.sess.Status().Path
		}
		err := s.sess.Load(path)
		return protocol.CmdResult{Index: -1, Detail: path}, err
	}
	return protocol.CmdResult{}, fmt.Errorf("%w: unknown op %q", protocol.ErrInvalidCmd, cmd.Op)
}

func (s *Server) stateLocked(last *protocol.CmdResult) protocol.StateMsg {
	s.seq++
	st := s.sess.Status()
	g := s.sess.Atlas().Grid()
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Seq:             s.seq,
		Path:            st.Path,
		Loaded:          st.Loaded,
		Dirty:           st.Dirty,
		Selected:        st.Selected,
		Blocks:          s.sess.Records(),
		Presets:         s.sess.Presets().Names(),
		Atlas: protocol.AtlasInfo{
			Size:     g.Size,
			Cells:    g.Cells,
			TileSize: g.TileSize(),
			Exists:   s.sess.Atlas().Exists(),
		},
		Last: last,
	}
	if i, r, ok := s.sess.Selected(); ok {
		view := &protocol.SelectionView{Index: i, Label: r.Label(), Faces: map[string]protocol.FaceView{}}
		for _, f := range []blocks.Face{blocks.FaceSide, blocks.FaceTop, blocks.FaceBottom} {
			cell, inherited := r.Texture(f)
			view.Faces[string(f)] = protocol.FaceView{Cell: cell, Inherited: inherited}
		}
		msg.Selection = view
	}
	return msg
}

func (s *Server) send(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
