// Package handlers implements the Huma-described operations backing
// the media engine's HTTP surface, one file per resource: a *Handler
// struct per resource wrapping a service, with a Register(huma.API)
// method that declares its operations.
package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/corten/mediaengine/internal/engine"
	"github.com/corten/mediaengine/internal/mediatypes"
)

// SessionHandler exposes session lifecycle and pull operations over
// internal/engine.Engine.
type SessionHandler struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewSessionHandler builds a SessionHandler over eng.
func NewSessionHandler(eng *engine.Engine, log *slog.Logger) *SessionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHandler{engine: eng, log: log}
}

// Register wires every session operation onto api.
func (h *SessionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createSession",
		Method:      "POST",
		Path:        "/sessions",
		Summary:     "Create a session",
		Tags:        []string{"Sessions"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "loadSource",
		Method:      "POST",
		Path:        "/sessions/{id}/load",
		Summary:     "Bind a media source to a session",
		Tags:        []string{"Sessions"},
	}, h.Load)

	huma.Register(api, huma.Operation{
		OperationID: "playSession",
		Method:      "POST",
		Path:        "/sessions/{id}/play",
		Summary:     "Start or resume playback",
		Tags:        []string{"Sessions"},
	}, h.Play)

	huma.Register(api, huma.Operation{
		OperationID: "pauseSession",
		Method:      "POST",
		Path:        "/sessions/{id}/pause",
		Summary:     "Pause playback",
		Tags:        []string{"Sessions"},
	}, h.Pause)

	huma.Register(api, huma.Operation{
		OperationID: "seekSession",
		Method:      "POST",
		Path:        "/sessions/{id}/seek",
		Summary:     "Seek to a position",
		Tags:        []string{"Sessions"},
	}, h.Seek)

	huma.Register(api, huma.Operation{
		OperationID: "setVolume",
		Method:      "POST",
		Path:        "/sessions/{id}/volume",
		Summary:     "Set playback volume",
		Tags:        []string{"Sessions"},
	}, h.SetVolume)

	huma.Register(api, huma.Operation{
		OperationID: "getVideoFrame",
		Method:      "GET",
		Path:        "/sessions/{id}/video-frame",
		Summary:     "Pull the next queued video frame",
		Tags:        []string{"Sessions"},
	}, h.GetVideoFrame)

	huma.Register(api, huma.Operation{
		OperationID: "getAudioSamples",
		Method:      "GET",
		Path:        "/sessions/{id}/audio-samples",
		Summary:     "Pull the next queued audio buffer",
		Tags:        []string{"Sessions"},
	}, h.GetAudioSamples)

	huma.Register(api, huma.Operation{
		OperationID: "destroySession",
		Method:      "DELETE",
		Path:        "/sessions/{id}",
		Summary:     "Destroy a session",
		Tags:        []string{"Sessions"},
	}, h.Destroy)
}

func parseSessionID(raw string) (mediatypes.SessionId, error) {
	return uuid.Parse(raw)
}

type sessionPath struct {
	ID string `path:"id" doc:"session id"`
}

// StatusOutput is a minimal acknowledgement body for commands that
// don't otherwise return data.
type StatusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func statusOK() *StatusOutput {
	out := &StatusOutput{}
	out.Body.Status = "ok"
	return out
}

// CreateSessionOutput carries the newly allocated session id.
type CreateSessionOutput struct {
	Body struct {
		SessionID string `json:"session_id"`
	}
}

// Create allocates a new idle session.
func (h *SessionHandler) Create(ctx context.Context, _ *struct{}) (*CreateSessionOutput, error) {
	id, err := h.engine.CreateSession()
	if err != nil {
		return nil, toHumaError(err)
	}
	out := &CreateSessionOutput{}
	out.Body.SessionID = id.String()
	return out, nil
}

// LoadSourceInput is the request body for binding a MediaSource.
type LoadSourceInput struct {
	sessionPath
	Body struct {
		// Kind is one of "url", "blob", "encrypted_url"; stream/capture-device/MSE
		// sources are not representable over a JSON request body and
		// must be driven through an embedder's in-process Engine.
		Kind string `json:"kind" enum:"url,blob,encrypted_url" doc:"media source kind"`
		URL  string `json:"url,omitempty"`
		Blob []byte `json:"blob,omitempty" doc:"base64-encoded media payload"`

		KeySystem string `json:"key_system,omitempty"`
		KeyID     string `json:"key_id,omitempty"`
	}
}

// Load binds a MediaSource to the session and advances it to Ready.
func (h *SessionHandler) Load(ctx context.Context, in *LoadSourceInput) (*StatusOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}

	src := mediatypes.MediaSource{
		URL:       in.Body.URL,
		Blob:      in.Body.Blob,
		KeySystem: in.Body.KeySystem,
		KeyID:     in.Body.KeyID,
	}
	switch in.Body.Kind {
	case "blob":
		src.Kind = mediatypes.SourceBlob
		src.Stream = bytes.NewReader(in.Body.Blob)
	case "encrypted_url":
		src.Kind = mediatypes.SourceEncryptedUrl
	default:
		src.Kind = mediatypes.SourceUrl
	}

	if err := h.engine.LoadSource(id, src); err != nil {
		return nil, toHumaError(err)
	}
	return statusOK(), nil
}

// Play starts or resumes playback.
func (h *SessionHandler) Play(ctx context.Context, in *sessionPath) (*StatusOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	if err := h.engine.Play(id); err != nil {
		return nil, toHumaError(err)
	}
	return statusOK(), nil
}

// Pause pauses playback.
func (h *SessionHandler) Pause(ctx context.Context, in *sessionPath) (*StatusOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	if err := h.engine.Pause(id); err != nil {
		return nil, toHumaError(err)
	}
	return statusOK(), nil
}

// SeekInput is the request body for repositioning playback.
type SeekInput struct {
	sessionPath
	Body struct {
		PositionSeconds float64 `json:"position_seconds" minimum:"0"`
	}
}

// Seek repositions playback, restoring the pre-seek state.
func (h *SessionHandler) Seek(ctx context.Context, in *SeekInput) (*StatusOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	position := time.Duration(in.Body.PositionSeconds * float64(time.Second))
	if err := h.engine.Seek(id, position); err != nil {
		return nil, toHumaError(err)
	}
	return statusOK(), nil
}

// SetVolumeInput is the request body for adjusting playback volume.
type SetVolumeInput struct {
	sessionPath
	Body struct {
		Volume float32 `json:"volume" minimum:"0" maximum:"1"`
	}
}

// SetVolume applies a new playback volume in [0.0, 1.0].
func (h *SessionHandler) SetVolume(ctx context.Context, in *SetVolumeInput) (*StatusOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	if err := h.engine.SetVolume(id, in.Body.Volume); err != nil {
		return nil, toHumaError(err)
	}
	return statusOK(), nil
}

// VideoFrameOutput describes one pulled video frame.
type VideoFrameOutput struct {
	Body struct {
		PresentationTimeSeconds float64 `json:"presentation_time_seconds"`
		Codec                   string  `json:"codec"`
		IsKeyframe              bool    `json:"is_keyframe"`
		Width                   int     `json:"width"`
		Height                  int     `json:"height"`
		Data                    []byte  `json:"data"`
	}
}

// GetVideoFrame pulls the next queued decoded video frame, reporting
// 404 when none is queued yet.
func (h *SessionHandler) GetVideoFrame(ctx context.Context, in *sessionPath) (*VideoFrameOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	frame, err := h.engine.GetVideoFrame(id)
	if err != nil {
		return nil, toHumaError(err)
	}
	out := &VideoFrameOutput{}
	out.Body.PresentationTimeSeconds = frame.PresentationTimestamp.Seconds()
	out.Body.Codec = videoCodecName(frame.Codec)
	out.Body.IsKeyframe = frame.IsKeyframe
	out.Body.Width = frame.Width
	out.Body.Height = frame.Height
	out.Body.Data = frame.Data
	return out, nil
}

// AudioSamplesInput carries the advisory pull-window size.
type AudioSamplesInput struct {
	sessionPath
	Count int `query:"count" default:"0" doc:"advisory sample-window size"`
}

// AudioSamplesOutput describes one pulled audio buffer.
type AudioSamplesOutput struct {
	Body struct {
		PresentationTimeSeconds float64   `json:"presentation_time_seconds"`
		Codec                   string    `json:"codec"`
		SampleRate              int       `json:"sample_rate"`
		Channels                int       `json:"channels"`
		Samples                 []float32 `json:"samples"`
	}
}

// GetAudioSamples pulls the next queued decoded audio buffer,
// reporting 404 when none is queued yet.
func (h *SessionHandler) GetAudioSamples(ctx context.Context, in *AudioSamplesInput) (*AudioSamplesOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	buf, err := h.engine.GetAudioSamples(id, in.Count)
	if err != nil {
		return nil, toHumaError(err)
	}
	out := &AudioSamplesOutput{}
	out.Body.PresentationTimeSeconds = buf.PresentationTimestamp.Seconds()
	out.Body.Codec = audioCodecName(buf.Codec)
	out.Body.SampleRate = buf.SampleRate
	out.Body.Channels = buf.Channels
	out.Body.Samples = buf.Samples
	return out, nil
}

// Destroy tears a session's pipeline down and frees its slot.
func (h *SessionHandler) Destroy(ctx context.Context, in *sessionPath) (*StatusOutput, error) {
	id, err := parseSessionID(in.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id", err)
	}
	if err := h.engine.DestroySession(id); err != nil {
		return nil, toHumaError(err)
	}
	return statusOK(), nil
}

func videoCodecName(c mediatypes.VideoCodec) string {
	switch c {
	case mediatypes.VideoCodecH264:
		return "h264"
	case mediatypes.VideoCodecH265:
		return "h265"
	case mediatypes.VideoCodecVP9:
		return "vp9"
	case mediatypes.VideoCodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

func audioCodecName(c mediatypes.AudioCodec) string {
	switch c {
	case mediatypes.AudioCodecAAC:
		return "aac"
	case mediatypes.AudioCodecOpus:
		return "opus"
	case mediatypes.AudioCodecPCM:
		return "pcm"
	default:
		return "unknown"
	}
}
