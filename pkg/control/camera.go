package control

import (
	"github.com/wachiwi/pi-control/pkg/camera"
)

// ServiceCamera controls the H264 pipeline of a camera service.
type ServiceCamera struct {
	Service *camera.Service
	// StreamInfo returns where TCP clients reach the stream. It may be nil.
	StreamInfo func() *StreamInfo
}

// Start explicitly starts the H264 stream.
func (s ServiceCamera) Start() error {
	if !s.Service.Available || s.Service.H264 == nil {
		return camera.ErrNoCaptureBinary
	}
	return s.Service.H264.Start()
}

// Stop stops the H264 stream and disconnects its TCP clients.
func (s ServiceCamera) Stop() {
	if s.Service.H264 != nil {
		s.Service.H264.Stop()
	}
}

func (s ServiceCamera) Status() CameraStatus {
	st := CameraStatus{Available: s.Service.Available}
	if s.Service.H264 != nil {
		st.Active = s.Service.H264.Status().Active
	}
	if st.Available && s.StreamInfo != nil {
		st.StreamInfo = s.StreamInfo()
	}
	return st
}
