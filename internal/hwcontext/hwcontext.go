// Package hwcontext defines the hardware-acceleration and DRM
// capability surfaces the pipeline's decode stage queries before
// choosing a decoder path. This module never binds to a real GPU or
// CDM (Non-goals: hardware acceleration bindings, DRM/EME); it
// provides the capability-query contract plus a software-only default
// that always reports no hardware support and an unimplemented DRM
// path, so the pipeline's fallback logic is exercised end-to-end in
// tests without a real backend.
package hwcontext

import "github.com/corten/mediaengine/internal/mediatypes"

// Capabilities reports what a hardware context can accelerate.
type Capabilities struct {
	SupportsVideoCodec map[mediatypes.VideoCodec]bool
}

// Context is the capability-query interface the pipeline consults when
// deciding whether to route a stream to a hardware or software
// decoder.
type Context interface {
	// Capabilities returns the current hardware decode capabilities.
	Capabilities() Capabilities
	// SupportsCodec is a convenience check over Capabilities.
	SupportsCodec(codec mediatypes.VideoCodec) bool
}

// SoftwareOnly is a Context that reports no hardware acceleration for
// any codec, forcing the pipeline's fallback path to the software
// decoder. This is the engine's default when no real hardware context
// is wired in.
type SoftwareOnly struct{}

func (SoftwareOnly) Capabilities() Capabilities {
	return Capabilities{SupportsVideoCodec: map[mediatypes.VideoCodec]bool{}}
}

func (SoftwareOnly) SupportsCodec(mediatypes.VideoCodec) bool { return false }

// DRM is the decryption capability surface for encrypted sources
// (MediaSource variants with Kind == SourceEncryptedUrl). Real CDM
// integration is a Non-goal; Unsupported below is the engine's default.
type DRM interface {
	// Decrypt decrypts data using the key identified by keyID.
	Decrypt(data []byte, keyID string) ([]byte, error)
}

// Unsupported is a DRM implementation that always reports an error,
// matching the spec's requirement that encrypted sources fail with
// DrmError when no real CDM is wired in.
type Unsupported struct{}

func (Unsupported) Decrypt([]byte, string) ([]byte, error) {
	return nil, drmUnsupportedErr
}
