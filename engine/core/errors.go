package core

import (
	"errors"
)

var (
	ErrInvalidSlot            = errors.New("invalid slot")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrResourceCreationFailed = errors.New("resource creation failed")
	ErrPipelineCreationFailed = errors.New("pipeline creation failed")
	ErrDeviceLost             = errors.New("device lost")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrUnknown                = errors.New("unknown")
)

type ErrorKind uint8

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindInvalidSlot
	ErrorKindInvalidParameter
	ErrorKindResourceCreationFailed
	ErrorKindPipelineCreationFailed
	ErrorKindDeviceLost
	ErrorKindUnsupportedFormat
	ErrorKindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindInvalidSlot:
		return "invalid-slot"
	case ErrorKindInvalidParameter:
		return "invalid-parameter"
	case ErrorKindResourceCreationFailed:
		return "resource-creation-failed"
	case ErrorKindPipelineCreationFailed:
		return "pipeline-creation-failed"
	case ErrorKindDeviceLost:
		return "device-lost"
	case ErrorKindUnsupportedFormat:
		return "unsupported-format"
	}
	return "unknown"
}

// Legacy result codes returned across the client API boundary.
const (
	D3D_OK                     uint32 = 0x00000000
	D3DERR_INVALIDCALL         uint32 = 0x8876086C
	D3DERR_DEVICELOST          uint32 = 0x88760868
	D3DERR_NOTAVAILABLE        uint32 = 0x8876086A
	D3DERR_OUTOFVIDEOMEMORY    uint32 = 0x8876017C
	D3DERR_DRIVERINTERNALERROR uint32 = 0x88760827
	E_FAIL                     uint32 = 0x80004005
)

// KindOf reports the kind of the first sentinel found in err's chain.
// Device loss wins over anything else it is wrapped with.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrDeviceLost):
		return ErrorKindDeviceLost
	case errors.Is(err, ErrInvalidSlot):
		return ErrorKindInvalidSlot
	case errors.Is(err, ErrInvalidParameter):
		return ErrorKindInvalidParameter
	case errors.Is(err, ErrResourceCreationFailed):
		return ErrorKindResourceCreationFailed
	case errors.Is(err, ErrPipelineCreationFailed):
		return ErrorKindPipelineCreationFailed
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrorKindUnsupportedFormat
	}
	return ErrorKindUnknown
}

// ResultCode maps an error returned by the core onto the legacy API code.
func ResultCode(err error) uint32 {
	switch KindOf(err) {
	case ErrorKindNone:
		return D3D_OK
	case ErrorKindInvalidSlot, ErrorKindInvalidParameter:
		return D3DERR_INVALIDCALL
	case ErrorKindResourceCreationFailed:
		return D3DERR_OUTOFVIDEOMEMORY
	case ErrorKindPipelineCreationFailed:
		return D3DERR_DRIVERINTERNALERROR
	case ErrorKindDeviceLost:
		return D3DERR_DEVICELOST
	case ErrorKindUnsupportedFormat:
		return D3DERR_NOTAVAILABLE
	}
	return E_FAIL
}
