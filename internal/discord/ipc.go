package discord

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type opcode uint32

const (
	opHandshake opcode = 0
	opFrame     opcode = 1
	opClose     opcode = 2
)

const (
	headerSize   = 8
	maxFrameSize = 1 << 20
	dialTimeout  = 5 * time.Second
)

// ActivityListening shows as "Listening to" in the client
const ActivityListening = 2

// Activity is the subset of the Rich Presence payload a radio needs.
// The zero Activity clears the presence.
type Activity struct {
	Type       int         `json:"type,omitempty"`
	Name       string      `json:"name,omitempty"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

// Timestamps carries the unix start time of the current channel
type Timestamps struct {
	Start *int64 `json:"start,omitempty"`
}

// Assets names the image and hover text shown with the activity
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

type handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string `json:"cmd"`
	Args  any    `json:"args"`
	Nonce string `json:"nonce"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type reply struct {
	Evt  string `json:"evt"`
	Data struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

// ipcClient speaks the local Discord RPC protocol: little-endian
// [opcode u32][length u32] headers followed by a JSON body.
type ipcClient struct {
	conn net.Conn
}

func ipcConnect(appID string) (*ipcClient, error) {
	conn, err := dialSocket()
	if err != nil {
		return nil, fmt.Errorf("dial discord socket: %w", err)
	}
	c := &ipcClient{conn: conn}

	if err := c.send(opHandshake, handshake{Version: 1, ClientID: appID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if _, _, err := c.readFrame(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake reply: %w", err)
	}
	return c, nil
}

// socketDirs lists where Discord places its IPC sockets on Linux.
// Flatpak and snap installs use subdirectories of the runtime dir.
func socketDirs() []string {
	var dirs []string
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		dirs = append(dirs,
			runtime,
			filepath.Join(runtime, "app", "com.discordapp.Discord"),
			filepath.Join(runtime, "snap.discord"),
		)
	}
	return append(dirs, os.TempDir())
}

func dialSocket() (net.Conn, error) {
	var lastErr error
	for _, dir := range socketDirs() {
		for i := 0; i < 10; i++ {
			conn, err := net.DialTimeout("unix", filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i)), dialTimeout)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("no discord socket found: %w", lastErr)
}

// SetActivity replaces the presence; the zero Activity clears it
func (c *ipcClient) SetActivity(a Activity) error {
	args := activityArgs{PID: os.Getpid()}
	if a != (Activity{}) {
		args.Activity = &a
	}
	return c.call("SET_ACTIVITY", args)
}

// call sends one command frame and checks the reply for an error event
func (c *ipcClient) call(cmd string, args any) error {
	if err := c.send(opFrame, command{Cmd: cmd, Args: args, Nonce: uuid.NewString()}); err != nil {
		return err
	}
	_, data, err := c.readFrame()
	if err != nil {
		return err
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode %s reply: %w", cmd, err)
	}
	if r.Evt == "ERROR" {
		return fmt.Errorf("discord error %d: %s", r.Data.Code, r.Data.Message)
	}
	return nil
}

func (c *ipcClient) Close() error {
	_ = c.writeFrame(opClose, []byte("{}"))
	return c.conn.Close()
}

func (c *ipcClient) send(op opcode, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeFrame(op, body)
}

func (c *ipcClient) writeFrame(op opcode, payload []byte) error {
	frame := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(op))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[headerSize:], payload)
	_, err := c.conn.Write(frame)
	return err
}

func (c *ipcClient) readFrame() (opcode, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return 0, nil, err
	}
	op := opcode(binary.LittleEndian.Uint32(header[0:4]))
	n := binary.LittleEndian.Uint32(header[4:8])
	if n > maxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return 0, nil, err
	}
	return op, payload, nil
}
